package school

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/table"
)

// StudentEnrollments lists the section enrollments of each user, tagged
// with a user_id column. Without ids every student is included. Users whose
// enrollments cannot be read are skipped.
func (s *Service) StudentEnrollments(ctx context.Context, ids ...int) (*table.Table, error) {
	if len(ids) == 0 {
		students, err := s.Users(ctx)
		if err != nil {
			return nil, err
		}
		for _, v := range students.Column("id") {
			id, err := toInt(v)
			if err != nil {
				return nil, fmt.Errorf("student id: %w", err)
			}
			ids = append(ids, id)
		}
	}

	var parts []*table.Table
	for _, id := range ids {
		res, err := s.client.Get(ctx, "academics/enrollments/"+strconv.Itoa(id))
		if err != nil {
			return nil, err
		}
		switch res.Kind {
		case sky.ResultTable, sky.ResultRecord:
			userID := id
			parts = append(parts, res.Table.WithColumn("user_id", func(table.Row) any { return userID }))
		default:
			s.logger.Debug("no enrollments", "user_id", id, "kind", res.Kind)
		}
	}
	return table.Concat(parts...), nil
}

// Enrollments splits current student enrollments by program.
type Enrollments struct {
	Academics *table.Table `json:"academics"`
	Advisory  *table.Table `json:"advisory"`
	Athletics *table.Table `json:"athletics"`
}

var (
	academicColumns = []string{
		"user_id", "block_name", "course_title", "faculty_first_name", "faculty_last_name",
		"duration_name", "id", "department_name", "section_identifier",
	}
	advisoryColumns  = []string{"user_id", "course_title", "faculty_first_name", "faculty_last_name", "id"}
	athleticsColumns = []string{"user_id", "course_title", "faculty_first_name", "faculty_last_name", "id", "duration_name"}
)

// EnrollmentSummary builds the academic, advisory and athletic enrollment
// tables of every student for the current term. Academic and advisory
// enrollments are limited to the duration named by the first word of the
// active term; with no active term those tables are empty. Each table
// renames the section id column to section_id.
func (s *Service) EnrollmentSummary(ctx context.Context) (*Enrollments, error) {
	enrollments, err := s.StudentEnrollments(ctx)
	if err != nil {
		return nil, err
	}
	levels, err := s.Levels(ctx, LevelFilter{})
	if err != nil {
		return nil, err
	}
	enrollments = enrollments.Merge(levels.
		Drop("abbreviation").
		Rename(map[string]string{"id": "level_number", "name": "level_description"}))

	types, err := s.OfferingTypes(ctx)
	if err != nil {
		return nil, err
	}

	academics := withDepartments(offeringFilter(enrollments, offeringIDs(types, Academics)))
	academicTerm, err := s.currentDuration(ctx, Academics)
	if err != nil {
		return nil, err
	}
	academics = sectionTable(durationFilter(academics, academicTerm), academicColumns)

	advisory := offeringFilter(enrollments, offeringIDs(types, Advisory)).Filter(func(r table.Row) bool {
		return table.Key(r["changed_sections"]) == "0"
	})
	advisoryTerm, err := s.currentDuration(ctx, Advisory)
	if err != nil {
		return nil, err
	}
	advisory = sectionTable(durationFilter(advisory, advisoryTerm), advisoryColumns)

	athletics := sectionTable(offeringFilter(enrollments, offeringIDs(types, Athletic)), athleticsColumns)

	return &Enrollments{
		Academics: academics,
		Advisory:  advisory,
		Athletics: athletics,
	}, nil
}

// currentDuration returns the first word of the first active term of an
// offering type, which is how enrollments name their duration. It is empty
// when no term is active.
func (s *Service) currentDuration(ctx context.Context, offeringType string) (string, error) {
	names, err := s.ActiveTerms(ctx, offeringType)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		s.logger.Warn("no active term", "offering_type", offeringType)
		return "", nil
	}
	fields := strings.Fields(names[0])
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

func offeringFilter(t *table.Table, ids []int) *table.Table {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[strconv.Itoa(id)] = true
	}
	return t.Filter(func(r table.Row) bool {
		return keep[table.Key(r["offering_type_id"])]
	})
}

func durationFilter(t *table.Table, duration string) *table.Table {
	return t.Filter(func(r table.Row) bool {
		return duration != "" && r["duration_name"] == duration
	})
}

// withDepartments replaces the departments list with one row per
// department carrying its department_name. Rows without departments are
// kept with a nil department_name.
func withDepartments(t *table.Table) *table.Table {
	out := table.New(t.Columns()...)
	for _, r := range t.Rows() {
		depts, _ := r["departments"].([]any)
		if len(depts) == 0 {
			depts = []any{nil}
		}
		for _, d := range depts {
			row := make(table.Row, len(r)+1)
			for k, v := range r {
				row[k] = v
			}
			var name any
			if m, ok := d.(map[string]any); ok {
				name = m["name"]
			}
			row["department_name"] = name
			out.Append(row)
		}
	}
	return out.Drop("departments")
}

func sectionTable(t *table.Table, columns []string) *table.Table {
	return t.Select(columns...).
		Rename(map[string]string{"id": "section_id"}).
		DropNil("section_id")
}

func toInt(v any) (int, error) {
	switch x := v.(type) {
	case float64:
		return int(x), nil
	case int:
		return x, nil
	case string:
		return strconv.Atoi(x)
	default:
		return 0, fmt.Errorf("not a number: %v", v)
	}
}
