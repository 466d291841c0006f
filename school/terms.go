package school

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/table"
)

// dateLayouts are the forms SKY uses for term dates. Dates without a zone
// are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// IsActive reports whether now falls within the term, bounds included.
func (t Term) IsActive(now time.Time) (bool, error) {
	begin, err := parseDate(t.BeginDate)
	if err != nil {
		return false, fmt.Errorf("term %d begin_date: %w", t.ID, err)
	}
	end, err := parseDate(t.EndDate)
	if err != nil {
		return false, fmt.Errorf("term %d end_date: %w", t.ID, err)
	}
	now = now.UTC()
	return !now.Before(begin) && !now.After(end), nil
}

// Terms lists the terms of an offering type as term_id, term_name and
// active columns. Placeholder terms with an id of zero or less are skipped.
func (s *Service) Terms(ctx context.Context, offeringType string) (*table.Table, error) {
	ids, err := s.OfferingIDs(ctx, offeringType)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOfferingType, offeringType)
	}
	t, err := s.table(ctx, "terms",
		sky.WithParams(map[string]string{"offering_type": strconv.Itoa(ids[0])}))
	if err != nil {
		return nil, err
	}
	var terms []Term
	if err := t.Decode(&terms); err != nil {
		return nil, err
	}

	now := s.now()
	out := table.New("term_id", "term_name", "active")
	for _, term := range terms {
		if term.ID <= 0 {
			continue
		}
		active, err := term.IsActive(now)
		if err != nil {
			return nil, err
		}
		out.Append(table.Row{
			"term_id":   term.ID,
			"term_name": term.Description,
			"active":    active,
		})
	}
	return out, nil
}

// ActiveTerms returns the distinct names of the terms of an offering type
// that are active now.
func (s *Service) ActiveTerms(ctx context.Context, offeringType string) ([]string, error) {
	t, err := s.Terms(ctx, offeringType)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, v := range t.Filter(func(r table.Row) bool { return r["active"] == true }).Distinct("term_name") {
		names = append(names, v.(string))
	}
	return names, nil
}
