package school

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/internal/skytest"
	"github.com/Seann-Moser/sky/oauth/oclient"
	"github.com/Seann-Moser/sky/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	midSpring = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	newYear   = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
)

func list(rows ...map[string]any) map[string]any {
	value := make([]any, len(rows))
	for i, r := range rows {
		value[i] = r
	}
	return map[string]any{"count": len(rows), "value": value}
}

// newSchool serves a small school over the fake provider.
func newSchool(t *testing.T) *skytest.Provider {
	t.Helper()
	p := skytest.New(t)
	p.Handle("school", "roles", list(
		map[string]any{"id": 10, "base_role_id": 14, "name": "Student"},
		map[string]any{"id": 11, "base_role_id": 15, "name": "Faculty"},
		map[string]any{"id": 12, "base_role_id": 16, "name": "Parent"},
	))
	p.Handle("school", "users/extended?base_role_ids=14", list(
		map[string]any{"id": 1, "first_name": "Ada"},
		map[string]any{"id": 2, "first_name": "Alan"},
	))
	p.Handle("school", "users/extended?base_role_ids=15", list(
		map[string]any{"id": 100, "first_name": "Grace", "email": "grace@example.edu"},
	))
	p.Handle("school", "levels", list(
		map[string]any{"id": 3, "abbreviation": "MS", "name": "Middle School"},
		map[string]any{"id": 4, "abbreviation": "US", "name": "Upper School"},
	))
	p.Handle("school", "academics/sections?level_num=4", list(
		map[string]any{"id": 500, "course_title": "Algebra", "teachers": []any{
			map[string]any{"id": 100, "head": true, "first_name": "Grace"},
			map[string]any{"id": 101, "head": false, "first_name": "Alan"},
		}},
		map[string]any{"id": 501, "course_title": "Study Hall", "teachers": []any{}},
	))
	p.Handle("school", "academics/sections?level_num=3", list(
		map[string]any{"id": 300, "course_title": "Science 7", "teachers": []any{
			map[string]any{"id": 102, "head": true, "first_name": "Marie"},
		}},
	))
	p.Handle("school", "offeringtypes", list(
		map[string]any{"id": 1, "description": "Academics"},
		map[string]any{"id": 2, "description": "Advisory"},
		map[string]any{"id": 3, "description": "Athletic"},
	))
	terms := list(
		map[string]any{"id": 0, "description": "Placeholder", "begin_date": "2000-01-01T00:00:00", "end_date": "2100-01-01T00:00:00"},
		map[string]any{"id": 20, "description": "Spring 2024", "level_description": "Upper School", "begin_date": "2024-01-08T00:00:00", "end_date": "2024-05-31T00:00:00"},
		map[string]any{"id": 21, "description": "Fall 2024", "level_description": "Upper School", "begin_date": "2024-08-20T00:00:00", "end_date": "2024-12-20T00:00:00"},
		map[string]any{"id": 22, "description": "Spring 2024", "level_description": "Middle School", "begin_date": "2024-01-08T00:00:00", "end_date": "2024-05-31T00:00:00"},
	)
	p.Handle("school", "terms?offering_type=1", terms)
	p.Handle("school", "terms?offering_type=2", terms)
	p.Handle("school", "academics/enrollments/1", list(
		map[string]any{"id": 500, "offering_type_id": 1, "duration_name": "Spring", "level_number": 4,
			"course_title": "Algebra", "block_name": "A", "faculty_first_name": "Grace", "faculty_last_name": "Hopper",
			"section_identifier": "ALG-1", "changed_sections": 0, "departments": []any{map[string]any{"id": 7, "name": "Math"}}},
		map[string]any{"id": 510, "offering_type_id": 1, "duration_name": "Fall", "level_number": 4,
			"course_title": "Geometry", "departments": []any{map[string]any{"id": 7, "name": "Math"}}},
		map[string]any{"id": 600, "offering_type_id": 2, "duration_name": "Spring", "level_number": 4,
			"course_title": "Advisory", "changed_sections": 0},
		map[string]any{"id": 601, "offering_type_id": 2, "duration_name": "Spring", "level_number": 4,
			"course_title": "Old Advisory", "changed_sections": 1},
		map[string]any{"id": 700, "offering_type_id": 3, "duration_name": "Winter", "level_number": 4,
			"course_title": "Basketball"},
	))
	return p
}

func newService(t *testing.T, p *skytest.Provider, now time.Time) *Service {
	t.Helper()
	ep := p.Endpoint()
	client, err := sky.New(
		sky.WithConfig(sky.Config{
			APIKey:   skytest.APIKey,
			APIURL:   p.APIURL(),
			AuthURL:  ep.AuthURL,
			TokenURL: ep.TokenURL,
		}),
		sky.WithTokenStore(&oclient.MockTokenStore{Token: p.IssueToken()}),
	)
	require.NoError(t, err)
	return New(client, WithClock(func() time.Time { return now }))
}

func TestRoleIDs(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)
	ctx := context.Background()

	ids, err := s.RoleIDs(ctx, true, "student", "FACULTY")
	require.NoError(t, err)
	assert.Equal(t, []int{14, 15}, ids)

	ids, err = s.RoleIDs(ctx, false, "parent")
	require.NoError(t, err)
	assert.Equal(t, []int{12}, ids)

	ids, err = s.RoleIDs(ctx, true, "janitor")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRoleIDs_CaseInsensitive(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)
	tests := []struct {
		name  string
		roles []string
		want  []int
	}{
		{"lower", []string{"student"}, []int{14}},
		{"title", []string{"Student"}, []int{14}},
		{"upper", []string{"STUDENT"}, []int{14}},
		{"mixed spellings of one role", []string{"student", "Student", "STUDENT"}, []int{14}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids, err := s.RoleIDs(context.Background(), true, tt.roles...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestUsers(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)

	students, err := s.Users(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, students.Len())

	all, err := s.Users(context.Background(), "student", "faculty")
	require.NoError(t, err)
	assert.Equal(t, 3, all.Len())
	assert.True(t, all.HasColumn("email"))
	assert.Nil(t, all.Value(0, "email"))
}

func TestLevels(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)
	ctx := context.Background()

	all, err := s.Levels(ctx, LevelFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())

	ids, err := s.LevelIDs(ctx, LevelFilter{Abbreviation: "US"})
	require.NoError(t, err)
	assert.Equal(t, []int{4}, ids)

	ids, err = s.LevelIDs(ctx, LevelFilter{Name: "Middle School"})
	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids)
}

func TestSections(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)

	sections, err := s.Sections(context.Background(), LevelFilter{Abbreviation: "US"})
	require.NoError(t, err)
	require.Equal(t, 1, sections.Len(), "sections without a head teacher are dropped")
	assert.Equal(t, float64(500), sections.Value(0, "id"))
	assert.Equal(t, "Grace", sections.Value(0, "teacher.first_name"))
	assert.Equal(t, float64(100), sections.Value(0, "teacher.id"))
	assert.False(t, sections.HasColumn("teachers"))

	all, err := s.Sections(context.Background(), LevelFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Len())
}

func TestTerms(t *testing.T) {
	tests := []struct {
		name       string
		now        time.Time
		wantActive []string
	}{
		{"mid spring", midSpring, []string{"Spring 2024"}},
		{"new year", newYear, nil},
		{"first day", time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC), []string{"Fall 2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newService(t, newSchool(t), tt.now)

			terms, err := s.Terms(context.Background(), Academics)
			require.NoError(t, err)
			assert.Equal(t, []string{"term_id", "term_name", "active"}, terms.Columns())
			assert.Equal(t, 3, terms.Len(), "placeholder term skipped")

			active, err := s.ActiveTerms(context.Background(), Academics)
			require.NoError(t, err)
			assert.Equal(t, tt.wantActive, active)
		})
	}
}

func TestTerms_UnknownOfferingType(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)
	_, err := s.Terms(context.Background(), "Residential")
	assert.True(t, errors.Is(err, ErrUnknownOfferingType))
}

func TestTerm_IsActive(t *testing.T) {
	term := Term{ID: 1, BeginDate: "2024-01-08T00:00:00", EndDate: "2024-05-31T00:00:00-04:00"}
	tests := []struct {
		now  time.Time
		want bool
	}{
		{time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC), false},
		{time.Date(2024, 5, 31, 4, 0, 0, 0, time.UTC), true},
		{time.Date(2024, 5, 31, 4, 0, 1, 0, time.UTC), false},
	}
	for _, tt := range tests {
		got, err := term.IsActive(tt.now)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "IsActive(%v)", tt.now)
	}

	_, err := Term{BeginDate: "soon", EndDate: "2024-05-31"}.IsActive(midSpring)
	assert.Error(t, err)
}

func TestOfferingIDs(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)

	ids, err := s.OfferingIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)

	ids, err = s.OfferingIDs(context.Background(), Advisory, Athletic)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, ids)
}

func TestStudentEnrollments(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)

	// user 2 has no enrollments route and is skipped
	enrollments, err := s.StudentEnrollments(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, enrollments.Len())
	for _, v := range enrollments.Column("user_id") {
		assert.Equal(t, 1, v)
	}

	one, err := s.StudentEnrollments(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 5, one.Len())
}

func TestEnrollmentSummary(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)

	got, err := s.EnrollmentSummary(context.Background())
	require.NoError(t, err)

	require.Equal(t, 1, got.Academics.Len())
	assert.Equal(t, []string{
		"user_id", "block_name", "course_title", "faculty_first_name", "faculty_last_name",
		"duration_name", "section_id", "department_name", "section_identifier",
	}, got.Academics.Columns())
	assert.Equal(t, table.Row{
		"user_id":            1,
		"block_name":         "A",
		"course_title":       "Algebra",
		"faculty_first_name": "Grace",
		"faculty_last_name":  "Hopper",
		"duration_name":      "Spring",
		"section_id":         float64(500),
		"department_name":    "Math",
		"section_identifier": "ALG-1",
	}, got.Academics.Row(0))

	require.Equal(t, 1, got.Advisory.Len())
	assert.Equal(t, float64(600), got.Advisory.Value(0, "section_id"))

	require.Equal(t, 1, got.Athletics.Len())
	assert.Equal(t, "Basketball", got.Athletics.Value(0, "course_title"))
}

func TestEnrollmentSummary_NoActiveTerm(t *testing.T) {
	s := newService(t, newSchool(t), newYear)

	got, err := s.EnrollmentSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Academics.Len())
	assert.Equal(t, 0, got.Advisory.Len())
	assert.Equal(t, 1, got.Athletics.Len())
}

func listPage(rows ...[]any) map[string]any {
	out := make([]any, len(rows))
	for i, cols := range rows {
		out[i] = map[string]any{"columns": cols}
	}
	return map[string]any{"count": len(rows), "results": map[string]any{"rows": out}}
}

func cell(name string, value any) map[string]any {
	return map[string]any{"name": name, "value": value}
}

func TestAdvancedList(t *testing.T) {
	p := newSchool(t)
	p.Handle("school", "lists/advanced/9?page=1", listPage(
		[]any{cell("first", "Ada"), cell("grade", 9)},
		[]any{cell("first", "Grace"), cell("grade", 10)},
	))
	p.Handle("school", "lists/advanced/9?page=2", listPage(
		[]any{cell("grade", 11), cell("first", "Alan")},
	))
	p.Handle("school", "lists/advanced/9?page=3", listPage())
	s := newService(t, p, midSpring)

	got, err := s.AdvancedList(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "grade"}, got.Columns())
	require.Equal(t, 3, got.Len())
	assert.Equal(t, table.Row{"first": "Alan", "grade": float64(11)}, got.Row(2))
}

func TestAdvancedList_Empty(t *testing.T) {
	p := newSchool(t)
	p.Handle("school", "lists/advanced/9?page=1", listPage())
	s := newService(t, p, midSpring)

	got, err := s.AdvancedList(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
}

func TestAdvancedList_Malformed(t *testing.T) {
	p := newSchool(t)
	p.Handle("school", "lists/advanced/9?page=1", listPage(
		[]any{cell("first", "Ada"), cell("grade", 9)},
		[]any{cell("first", "Grace"), cell("first", "Alan")},
	))
	p.Handle("school", "lists/advanced/9?page=2", listPage())
	s := newService(t, p, midSpring)

	_, err := s.AdvancedList(context.Background(), 9)
	var mErr *table.MalformedListFeedError
	assert.True(t, errors.As(err, &mErr), "got %v", err)
}

func TestAdvancedList_MissingList(t *testing.T) {
	s := newService(t, newSchool(t), midSpring)
	_, err := s.AdvancedList(context.Background(), 404)
	assert.Error(t, err)
}
