package db

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/soaringjerry/checkbot/internal/models"
	"github.com/soaringjerry/checkbot/internal/services"
)

// Seed is the YAML document used to load the roster and the checklist.
type Seed struct {
	Employees []models.Employee          `yaml:"employees"`
	Roster    []models.RosterEntry       `yaml:"roster"`
	Questions []models.ChecklistQuestion `yaml:"questions"`
}

type SeedStats struct {
	Employees int
	Roster    int
	Questions int
}

func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	ids := map[string]bool{}
	for i, e := range s.Employees {
		if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.FullName) == "" {
			return fmt.Errorf("employee %d: id and full_name are required", i+1)
		}
		if services.NormalizePhone(e.Phone) == "" {
			return fmt.Errorf("employee %s: phone has no digits", e.ID)
		}
		ids[e.ID] = true
	}
	for i, r := range s.Roster {
		if r.EmployeeID == "" || r.Date == "" || r.Outlet == "" {
			return fmt.Errorf("roster %d: employee_id, date and outlet are required", i+1)
		}
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return fmt.Errorf("roster %d: date %q is not YYYY-MM-DD", i+1, r.Date)
		}
		if !ids[r.EmployeeID] {
			return fmt.Errorf("roster %d: unknown employee %q", i+1, r.EmployeeID)
		}
	}
	for i, q := range s.Questions {
		if q.ID == "" || strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: id and text are required", i+1)
		}
	}
	return nil
}

// ApplySeed upserts the seed in one transaction. Rows not in the seed are
// left alone.
func (s *SQLiteStore) ApplySeed(ctx context.Context, seed *Seed) (stats SeedStats, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin seed: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, e := range seed.Employees {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO employees(id, full_name, phone, phone_key) VALUES(?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET full_name = excluded.full_name, phone = excluded.phone, phone_key = excluded.phone_key`,
			e.ID, strings.TrimSpace(e.FullName), e.Phone, services.NormalizePhone(e.Phone)); err != nil {
			return stats, fmt.Errorf("upsert employee %s: %w", e.ID, err)
		}
		stats.Employees++
	}
	for _, r := range seed.Roster {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO roster(employee_id, date, outlet) VALUES(?, ?, ?)
			ON CONFLICT(employee_id, date) DO UPDATE SET outlet = excluded.outlet`,
			r.EmployeeID, r.Date, strings.TrimSpace(r.Outlet)); err != nil {
			return stats, fmt.Errorf("upsert roster %s/%s: %w", r.EmployeeID, r.Date, err)
		}
		stats.Roster++
	}
	for _, q := range seed.Questions {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO questions(id, outlet, outlet_key, slot, slot_key, position, text, image_required)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET outlet = excluded.outlet, outlet_key = excluded.outlet_key,
				slot = excluded.slot, slot_key = excluded.slot_key, position = excluded.position,
				text = excluded.text, image_required = excluded.image_required`,
			q.ID, q.Outlet, services.MatchKey(q.Outlet), q.Slot, services.MatchKey(q.Slot), q.Position,
			strings.TrimSpace(q.Text), boolToInt64(q.ImageRequired)); err != nil {
			return stats, fmt.Errorf("upsert question %s: %w", q.ID, err)
		}
		stats.Questions++
	}
	if err = tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit seed: %w", err)
	}
	return stats, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}
