// Package school wraps the SKY School API endpoints most reports need:
// roles, users, levels, sections, terms, enrollments and advanced lists.
package school

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Seann-Moser/sky"
	"github.com/Seann-Moser/sky/table"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrUnknownOfferingType is returned when no offering type has the
// requested description.
var ErrUnknownOfferingType = errors.New("unknown offering type")

// Getter is the part of sky.Client the service needs.
type Getter interface {
	Get(ctx context.Context, endpoint string, opts ...sky.RequestOption) (*sky.Result, error)
}

var _ Getter = (*sky.Client)(nil)

// Service runs the school convenience queries.
type Service struct {
	client Getter
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now when deciding which terms are active.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New returns a Service over client.
func New(client Getter, opts ...Option) *Service {
	s := &Service{
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// table fetches endpoint and fails on a provider error. An empty response
// yields an empty table.
func (s *Service) table(ctx context.Context, endpoint string, opts ...sky.RequestOption) (*table.Table, error) {
	res, err := s.client.Get(ctx, endpoint, opts...)
	if err != nil {
		return nil, err
	}
	if res.Kind == sky.ResultProviderError {
		return nil, fmt.Errorf("%s: %w", endpoint, res.Err)
	}
	return res.Rows(), nil
}

// Roles lists every role.
func (s *Service) Roles(ctx context.Context) ([]Role, error) {
	t, err := s.table(ctx, "roles")
	if err != nil {
		return nil, err
	}
	var roles []Role
	if err := t.Decode(&roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// RoleIDs returns the ids of the named roles, in the order the API lists
// them. Names are title-cased first, so "student" matches "Student". With
// base set the base_role_id is returned instead of the role id.
func (s *Service) RoleIDs(ctx context.Context, base bool, names ...string) ([]int, error) {
	title := cases.Title(language.English)
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[title.String(n)] = true
	}
	roles, err := s.Roles(ctx)
	if err != nil {
		return nil, err
	}
	var ids []int
	for _, r := range roles {
		if !want[r.Name] {
			continue
		}
		if base {
			ids = append(ids, r.BaseRoleID)
		} else {
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

// Users lists the extended user records of every user holding one of the
// roles. The default role is "student".
func (s *Service) Users(ctx context.Context, roles ...string) (*table.Table, error) {
	if len(roles) == 0 {
		roles = []string{"student"}
	}
	ids, err := s.RoleIDs(ctx, true, roles...)
	if err != nil {
		return nil, err
	}
	var parts []*table.Table
	for _, id := range ids {
		res, err := s.client.Get(ctx, "users/extended",
			sky.WithParams(map[string]string{"base_role_ids": strconv.Itoa(id)}))
		if err != nil {
			return nil, err
		}
		if res.Kind == sky.ResultTable {
			parts = append(parts, res.Table)
		}
	}
	return table.Concat(parts...), nil
}

// Levels lists the school levels matching f.
func (s *Service) Levels(ctx context.Context, f LevelFilter) (*table.Table, error) {
	t, err := s.table(ctx, "levels")
	if err != nil {
		return nil, err
	}
	return t.Filter(func(r table.Row) bool {
		name, _ := r["name"].(string)
		abbv, _ := r["abbreviation"].(string)
		return f.match(Level{Name: name, Abbreviation: abbv})
	}), nil
}

// LevelIDs returns the ids of the levels matching f.
func (s *Service) LevelIDs(ctx context.Context, f LevelFilter) ([]int, error) {
	t, err := s.Levels(ctx, f)
	if err != nil {
		return nil, err
	}
	var levels []Level
	if err := t.Decode(&levels); err != nil {
		return nil, err
	}
	ids := make([]int, len(levels))
	for i, l := range levels {
		ids[i] = l.ID
	}
	return ids, nil
}

// Sections lists the academic sections of the levels matching f. Each
// section is joined with its head teacher, whose fields appear as
// teacher.<field> columns; sections without a head teacher are left out.
func (s *Service) Sections(ctx context.Context, f LevelFilter) (*table.Table, error) {
	levels, err := s.LevelIDs(ctx, f)
	if err != nil {
		return nil, err
	}
	var parts []*table.Table
	for _, id := range levels {
		t, err := s.table(ctx, "academics/sections",
			sky.WithParams(map[string]string{"level_num": strconv.Itoa(id)}))
		if err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}
	sections := table.Concat(parts...)

	out := table.New()
	for _, r := range sections.Rows() {
		teachers, _ := r["teachers"].([]any)
		for _, t := range teachers {
			teacher, ok := t.(map[string]any)
			if !ok || teacher["head"] != true {
				continue
			}
			row := make(table.Row, len(r)+len(teacher))
			for k, v := range r {
				if k != "teachers" {
					row[k] = v
				}
			}
			for k, v := range table.Normalize(teacher) {
				row["teacher"+table.Separator+k] = v
			}
			out.Append(row)
		}
	}
	return out, nil
}

// OfferingTypes lists every offering type.
func (s *Service) OfferingTypes(ctx context.Context) ([]OfferingType, error) {
	t, err := s.table(ctx, "offeringtypes")
	if err != nil {
		return nil, err
	}
	var types []OfferingType
	if err := t.Decode(&types); err != nil {
		return nil, err
	}
	return types, nil
}

// OfferingIDs returns the ids of the offering types with the given
// descriptions. The default is Academics.
func (s *Service) OfferingIDs(ctx context.Context, descriptions ...string) ([]int, error) {
	if len(descriptions) == 0 {
		descriptions = []string{Academics}
	}
	types, err := s.OfferingTypes(ctx)
	if err != nil {
		return nil, err
	}
	return offeringIDs(types, descriptions...), nil
}

func offeringIDs(types []OfferingType, descriptions ...string) []int {
	want := make(map[string]bool, len(descriptions))
	for _, d := range descriptions {
		want[d] = true
	}
	var ids []int
	for _, t := range types {
		if want[t.Description] {
			ids = append(ids, t.ID)
		}
	}
	return ids
}
