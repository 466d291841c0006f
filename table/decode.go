package table

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode copies every row of t into out, which must point to a slice of
// structs (or maps). Struct fields are matched by their `mapstructure` tag.
// JSON numbers arrive as float64 and are weakly converted to the field type.
func (t *Table) Decode(out any) error {
	records := make([]map[string]any, len(t.rows))
	for i, r := range t.rows {
		records[i] = r
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("table decoder: %w", err)
	}
	if err := dec.Decode(records); err != nil {
		return fmt.Errorf("decode table: %w", err)
	}
	return nil
}
