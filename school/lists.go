package school

import (
	"context"
	"fmt"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/table"
)

// maxListPages bounds AdvancedList; at 1000 rows a page that is 100,000 rows.
const maxListPages = 100

// AdvancedList reads a saved advanced list page by page until a page
// reports a count of zero, then pivots its (name, value) cells into one row
// per record with a column per list field.
func (s *Service) AdvancedList(ctx context.Context, listID int) (*table.Table, error) {
	long := table.New("name", "value")
	for page := 1; page <= maxListPages; page++ {
		endpoint := fmt.Sprintf("lists/advanced/%d?page=%d", listID, page)
		res, err := s.client.Get(ctx, endpoint, sky.WithRawData())
		if err != nil {
			return nil, err
		}
		count, ok := res.Raw["count"].(float64)
		if !ok {
			return nil, fmt.Errorf("advanced list %d page %d: response has no count", listID, page)
		}
		if count == 0 {
			break
		}
		long.Append(listCells(res.Raw)...)
	}
	return table.CleanAdvancedList(long)
}

// listCells flattens results.rows[].columns[] into (name, value) rows.
func listCells(raw map[string]any) []table.Row {
	results, _ := raw["results"].(map[string]any)
	rows, _ := results["rows"].([]any)
	var cells []table.Row
	for _, r := range rows {
		row, _ := r.(map[string]any)
		columns, _ := row["columns"].([]any)
		for _, c := range columns {
			col, ok := c.(map[string]any)
			if !ok {
				continue
			}
			cells = append(cells, table.Row{"name": col["name"], "value": col["value"]})
		}
	}
	return cells
}
