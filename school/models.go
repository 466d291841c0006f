package school

// Role is a row of the roles endpoint.
type Role struct {
	ID         int    `mapstructure:"id"`
	BaseRoleID int    `mapstructure:"base_role_id"`
	Name       string `mapstructure:"name"`
}

// Level is a school level such as "Upper School".
type Level struct {
	ID           int    `mapstructure:"id"`
	Abbreviation string `mapstructure:"abbreviation"`
	Name         string `mapstructure:"name"`
}

// OfferingType is a program area such as "Academics" or "Athletic".
type OfferingType struct {
	ID          int    `mapstructure:"id"`
	Description string `mapstructure:"description"`
}

// Term is a row of the terms endpoint.
type Term struct {
	ID               int    `mapstructure:"id"`
	Description      string `mapstructure:"description"`
	LevelDescription string `mapstructure:"level_description"`
	BeginDate        string `mapstructure:"begin_date"`
	EndDate          string `mapstructure:"end_date"`
}

// LevelFilter narrows levels by abbreviation or, when that is empty, by
// name. The zero value matches every level.
type LevelFilter struct {
	Abbreviation string
	Name         string
}

func (f LevelFilter) match(l Level) bool {
	switch {
	case f.Abbreviation != "":
		return l.Abbreviation == f.Abbreviation
	case f.Name != "":
		return l.Name == f.Name
	default:
		return true
	}
}

const (
	Academics = "Academics"
	Advisory  = "Advisory"
	Athletic  = "Athletic"
)
