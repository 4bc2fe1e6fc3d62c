// Package sheets reads the roster and checklist from a Google spreadsheet and
// appends finished submissions to one.
package sheets

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/soaringjerry/checkbot/internal/services"
)

// Column headers, matched case-insensitively.
const (
	colPhone         = "Phone Number"
	colFullName      = "Full Name"
	colEmployeeID    = "Employee ID"
	colDate          = "Date"
	colOutlet        = "Outlet"
	colQuestion      = "Question_Text"
	colImageRequired = "Image Required"
	colChecklist     = "Applicable Checklist"
	colSlot          = "Time_Slot"
)

// Roster dates are entered by hand, so a few layouts are accepted.
var rosterDateLayouts = []string{"02/01/2006", "2/1/2006", "2006-01-02"}

// Tabs names the worksheets the directory reads.
type Tabs struct {
	Employees string
	Roster    string
	Checklist string
}

type valueReader interface {
	read(ctx context.Context, tab string) ([][]interface{}, error)
}

type apiReader struct {
	svc           *sheetsapi.Service
	spreadsheetID string
}

func (r apiReader) read(ctx context.Context, tab string) ([][]interface{}, error) {
	resp, err := r.svc.Spreadsheets.Values.Get(r.spreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read tab %q: %w", tab, err)
	}
	return resp.Values, nil
}

// Directory implements services.IdentityResolver and services.QuestionCatalog
// over three worksheets. Every call reads the current sheet contents.
type Directory struct {
	reader   valueReader
	tabs     Tabs
	location *time.Location
	now      func() time.Time
}

// NewDirectory opens the Sheets API with read-only scope.
func NewDirectory(ctx context.Context, spreadsheetID string, tabs Tabs, loc *time.Location, opts ...option.ClientOption) (*Directory, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsReadonlyScope)}, opts...)
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return newDirectory(apiReader{svc: svc, spreadsheetID: spreadsheetID}, tabs, loc), nil
}

func newDirectory(r valueReader, tabs Tabs, loc *time.Location) *Directory {
	if loc == nil {
		loc = time.UTC
	}
	return &Directory{reader: r, tabs: tabs, location: loc, now: time.Now}
}

// Resolve finds the employee by phone number and today's roster outlet.
func (d *Directory) Resolve(ctx context.Context, phone string) (services.Identity, error) {
	key := services.NormalizePhone(phone)
	if key == "" {
		return services.Identity{}, services.ErrUnresolved
	}
	employees, err := d.reader.read(ctx, d.tabs.Employees)
	if err != nil {
		return services.Identity{}, err
	}
	name, empID, ok := findEmployee(employees, key)
	if !ok {
		return services.Identity{}, services.ErrUnresolved
	}

	roster, err := d.reader.read(ctx, d.tabs.Roster)
	if err != nil {
		return services.Identity{}, err
	}
	today := d.now().In(d.location)
	outlet, ok := findOutlet(roster, empID, today)
	if !ok {
		return services.Identity{}, services.ErrUnresolved
	}
	return services.Identity{Name: name, EmployeeID: empID, ContextKey: outlet}, nil
}

// QuestionsFor returns the checklist rows for outlet and slot in sheet order.
func (d *Directory) QuestionsFor(ctx context.Context, contextKey, slot string) ([]services.QuestionRecord, error) {
	rows, err := d.reader.read(ctx, d.tabs.Checklist)
	if err != nil {
		return nil, err
	}
	return matchQuestions(rows, contextKey, slot), nil
}

type table struct {
	cols map[string]int
	rows [][]interface{}
}

func newTable(values [][]interface{}) table {
	t := table{cols: map[string]int{}}
	if len(values) == 0 {
		return t
	}
	for i, h := range values[0] {
		key := services.MatchKey(fmt.Sprint(h))
		if _, dup := t.cols[key]; !dup {
			t.cols[key] = i
		}
	}
	t.rows = values[1:]
	return t
}

func (t table) cell(row []interface{}, col string) string {
	i, ok := t.cols[services.MatchKey(col)]
	if !ok || i >= len(row) || row[i] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[i]))
}

func findEmployee(values [][]interface{}, phoneKey string) (name, id string, ok bool) {
	t := newTable(values)
	for _, row := range t.rows {
		if services.NormalizePhone(t.cell(row, colPhone)) != phoneKey {
			continue
		}
		id = t.cell(row, colEmployeeID)
		if id == "" {
			continue
		}
		return t.cell(row, colFullName), id, true
	}
	return "", "", false
}

func findOutlet(values [][]interface{}, employeeID string, today time.Time) (string, bool) {
	t := newTable(values)
	y, m, d := today.Date()
	for _, row := range t.rows {
		if t.cell(row, colEmployeeID) != employeeID {
			continue
		}
		date, ok := parseRosterDate(t.cell(row, colDate), today.Location())
		if !ok {
			continue
		}
		if dy, dm, dd := date.Date(); dy == y && dm == m && dd == d {
			if outlet := t.cell(row, colOutlet); outlet != "" {
				return outlet, true
			}
		}
	}
	return "", false
}

func parseRosterDate(s string, loc *time.Location) (time.Time, bool) {
	for _, layout := range rosterDateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func matchQuestions(values [][]interface{}, contextKey, slot string) []services.QuestionRecord {
	t := newTable(values)
	outletKey, slotKey := services.MatchKey(contextKey), services.MatchKey(slot)
	var out []services.QuestionRecord
	for _, row := range t.rows {
		if services.MatchKey(t.cell(row, colChecklist)) != outletKey || services.MatchKey(t.cell(row, colSlot)) != slotKey {
			continue
		}
		text := t.cell(row, colQuestion)
		if text == "" {
			continue
		}
		out = append(out, services.QuestionRecord{
			Text:          text,
			RequiresPhoto: services.MatchKey(t.cell(row, colImageRequired)) == "yes",
		})
	}
	return out
}
