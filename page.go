package sky

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/Seann-Moser/sky/table"
)

// Page is one decoded response of a collection endpoint.
type Page struct {
	Status int
	Raw    map[string]any
	// HasValue reports whether the response carried a value list. A
	// response without one is a single resource.
	HasValue bool
	Value    []any
	NextLink string
}

func decodePage(status int, body []byte) (*Page, error) {
	p := &Page{Status: status}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return p, nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", status, err)
	}
	switch x := v.(type) {
	case map[string]any:
		p.Raw = x
		if list, ok := x["value"].([]any); ok {
			p.HasValue = true
			p.Value = list
		}
		if link, ok := x["next_link"].(string); ok {
			p.NextLink = link
		}
	case []any:
		p.HasValue = true
		p.Value = x
		p.Raw = map[string]any{"value": x}
	case nil:
	default:
		p.Raw = map[string]any{"value": x}
	}
	return p, nil
}

// Rows flattens the value list. Entries that are not objects land in a
// "value" column.
func (p *Page) Rows() []table.Row {
	rows := make([]table.Row, 0, len(p.Value))
	for _, item := range p.Value {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, table.Normalize(m))
			continue
		}
		rows = append(rows, table.Row{"value": item})
	}
	return rows
}
