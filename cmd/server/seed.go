package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/soaringjerry/checkbot/internal/db"
)

// applySeed loads the roster and checklist from a YAML file into sqlite on
// every start. Rows are upserted, so the file stays the source of truth.
func applySeed(ctx context.Context, store *db.SQLiteStore, path string) error {
	if path == "" {
		return nil
	}
	seed, err := db.LoadSeed(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("seed file %s not found, skipping", path)
			return nil
		}
		return fmt.Errorf("load seed: %w", err)
	}
	stats, err := store.ApplySeed(ctx, seed)
	if err != nil {
		return fmt.Errorf("apply seed: %w", err)
	}
	log.Printf("seed applied from %s: %d employees, %d roster rows, %d questions",
		path, stats.Employees, stats.Roster, stats.Questions)
	return nil
}
