package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"google.golang.org/api/option"

	"github.com/soaringjerry/checkbot/internal/config"
	"github.com/soaringjerry/checkbot/internal/db"
	"github.com/soaringjerry/checkbot/internal/evidence"
	"github.com/soaringjerry/checkbot/internal/firestore"
	"github.com/soaringjerry/checkbot/internal/gdrive"
	"github.com/soaringjerry/checkbot/internal/services"
	"github.com/soaringjerry/checkbot/internal/sheets"
)

// backends holds the collaborators selected by configuration.
type backends struct {
	resolver services.IdentityResolver
	catalog  services.QuestionCatalog
	evidence services.EvidenceStore
	sink     services.SubmissionSink

	// sqlite is set whenever any backend uses the local database.
	sqlite  *db.SQLiteStore
	closers []io.Closer
}

func (b *backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

// reportStore returns the store behind the reporting API, or nil when
// submissions are not written to sqlite.
func (b *backends) reportStore(cfg config.Config) services.ExportStore {
	if cfg.SinkBackend != config.BackendSQLite || b.sqlite == nil {
		return nil
	}
	return b.sqlite
}

func googleOptions(cfg config.Config) []option.ClientOption {
	if cfg.Google.CredentialsFile == "" {
		return nil
	}
	return []option.ClientOption{option.WithCredentialsFile(cfg.Google.CredentialsFile)}
}

func openBackends(ctx context.Context, cfg config.Config) (_ *backends, err error) {
	b := &backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()
	loc := cfg.Location()

	if cfg.UsesSQLite() {
		store, err := db.Open(ctx, cfg.SQLitePath, cfg.MigrationsDir, loc)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.SQLitePath, err)
		}
		b.sqlite = store
		b.closers = append(b.closers, store)
		if err := applySeed(ctx, store, cfg.SeedPath); err != nil {
			return nil, err
		}
	}

	switch cfg.DirectoryBackend {
	case config.BackendSheets:
		dir, err := sheets.NewDirectory(ctx, cfg.Google.SpreadsheetID, sheets.Tabs{
			Employees: cfg.Google.EmployeeTab,
			Roster:    cfg.Google.RosterTab,
			Checklist: cfg.Google.ChecklistTab,
		}, loc, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		b.resolver, b.catalog = dir, dir
	default:
		b.resolver, b.catalog = b.sqlite, b.sqlite
	}

	switch cfg.EvidenceBackend {
	case config.BackendDrive:
		store, err := gdrive.NewStore(ctx, cfg.Google.DriveFolderID, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		b.evidence = store
	default:
		store, err := evidence.NewLocalStore(cfg.EvidenceDir)
		if err != nil {
			return nil, err
		}
		b.evidence = store
	}

	switch cfg.SinkBackend {
	case config.BackendSheets:
		sink, err := sheets.NewSink(ctx, cfg.Google.OutputSpreadsheetID,
			cfg.Google.SubmissionsTab, cfg.Google.AnswersTab, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		b.sink = sink
	case config.BackendFirestore:
		sink, err := firestore.NewSink(ctx, cfg.Google.FirestoreProject,
			cfg.Google.FirestoreDatabase, cfg.Google.FirestoreCollection, googleOptions(cfg)...)
		if err != nil {
			return nil, err
		}
		b.sink = sink
		b.closers = append(b.closers, sink)
	default:
		b.sink = b.sqlite
	}

	log.Printf("backends: directory=%s evidence=%s sink=%s", cfg.DirectoryBackend, cfg.EvidenceBackend, cfg.SinkBackend)
	return b, nil
}
