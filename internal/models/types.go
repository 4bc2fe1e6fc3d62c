package models

// Employee is a registered person who may run checklists. Phone is kept as
// entered; lookups compare the normalized form.
type Employee struct {
	ID       string `yaml:"id" json:"id"`
	FullName string `yaml:"full_name" json:"full_name"`
	Phone    string `yaml:"phone" json:"phone"`
}

// RosterEntry assigns an employee to an outlet for one calendar day.
// Date is YYYY-MM-DD in the configured roster time zone.
type RosterEntry struct {
	EmployeeID string `yaml:"employee_id" json:"employee_id"`
	Date       string `yaml:"date" json:"date"`
	Outlet     string `yaml:"outlet" json:"outlet"`
}

// ChecklistQuestion is one catalog row. Outlet and Slot select which
// interviews the question applies to; Position orders it within them.
type ChecklistQuestion struct {
	ID            string `yaml:"id" json:"id"`
	Outlet        string `yaml:"outlet" json:"outlet"`
	Slot          string `yaml:"slot" json:"slot"`
	Position      int    `yaml:"position" json:"position"`
	Text          string `yaml:"text" json:"text"`
	ImageRequired bool   `yaml:"image_required" json:"image_required"`
}
