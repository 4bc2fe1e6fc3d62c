package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/soaringjerry/checkbot/internal/services"
)

// SQLiteStore backs the roster, the question catalog and the submission log
// with one sqlite database.
type SQLiteStore struct {
	db       *sql.DB
	location *time.Location
	now      func() time.Time
}

// Open opens (creating if needed) the database file at path and applies
// migrations.
func Open(ctx context.Context, path, migrationsDir string, loc *time.Location) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", filepath.ToSlash(path))
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; listings release their rows before nested queries.
	sqlDB.SetMaxOpenConns(1)
	if err := RunMigrations(ctx, sqlDB, migrationsDir); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	store, err := NewSQLiteStore(sqlDB, loc)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return store, nil
}

func NewSQLiteStore(db *sql.DB, loc *time.Location) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &SQLiteStore{db: db, location: loc, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) today() string {
	return s.now().In(s.location).Format("2006-01-02")
}

// Resolve finds the employee with the given phone who is rostered today.
func (s *SQLiteStore) Resolve(ctx context.Context, phone string) (services.Identity, error) {
	key := services.NormalizePhone(phone)
	if key == "" {
		return services.Identity{}, services.ErrUnresolved
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT e.id, e.full_name, r.outlet
		FROM employees e
		JOIN roster r ON r.employee_id = e.id
		WHERE e.phone_key = ? AND r.date = ?
		ORDER BY e.id
		LIMIT 1`, key, s.today())
	var ident services.Identity
	if err := row.Scan(&ident.EmployeeID, &ident.Name, &ident.ContextKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return services.Identity{}, services.ErrUnresolved
		}
		return services.Identity{}, fmt.Errorf("resolve phone: %w", err)
	}
	return ident, nil
}

// QuestionsFor returns the outlet's questions for slot ordered by position.
func (s *SQLiteStore) QuestionsFor(ctx context.Context, contextKey, slot string) ([]services.QuestionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT text, image_required
		FROM questions
		WHERE outlet_key = ? AND slot_key = ?
		ORDER BY position ASC, id ASC`, services.MatchKey(contextKey), services.MatchKey(slot))
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()
	var out []services.QuestionRecord
	for rows.Next() {
		var q services.QuestionRecord
		var image int64
		if err := rows.Scan(&q.Text, &image); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.RequiresPhoto = image != 0
		out = append(out, q)
	}
	return out, rows.Err()
}

// Record writes the header and every answer in one transaction.
func (s *SQLiteStore) Record(ctx context.Context, header services.SubmissionHeader, answers []services.AnswerRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin submission: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil && !errors.Is(rerr, sql.ErrTxDone) {
				log.Printf("sqlite store: rollback submission %s: %v", header.ID, rerr)
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO submissions(id, date, slot, outlet, outlet_key, identity_name, created_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)`,
		header.ID, header.Date, header.Slot, header.ContextKey, services.MatchKey(header.ContextKey),
		header.IdentityName, header.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isConstraint(err) {
			return fmt.Errorf("%w: %s", services.ErrDuplicateSubmission, header.ID)
		}
		return fmt.Errorf("insert submission: %w", err)
	}
	for i, a := range answers {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO submission_answers(submission_id, position, question, answer, evidence_ref)
			VALUES(?, ?, ?, ?, ?)`, header.ID, i+1, a.Question, a.Answer, a.EvidenceRef); err != nil {
			return fmt.Errorf("insert answer %d: %w", i+1, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit submission: %w", err)
	}
	return nil
}

func isConstraint(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey || se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// ListSubmissions returns headers with their answers, oldest first.
func (s *SQLiteStore) ListSubmissions(ctx context.Context, filter services.SubmissionFilter) ([]services.StoredSubmission, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	outletKey := ""
	if strings.TrimSpace(filter.Outlet) != "" {
		outletKey = services.MatchKey(filter.Outlet)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, date, slot, outlet, identity_name, created_at
		FROM submissions
		WHERE (? = '' OR date = ?) AND (? = '' OR outlet_key = ?)
		ORDER BY created_at ASC, id ASC
		LIMIT ?`, filter.Date, filter.Date, outletKey, outletKey, limit)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	var out []services.StoredSubmission
	for rows.Next() {
		var h services.SubmissionHeader
		var created string
		if err := rows.Scan(&h.ID, &h.Date, &h.Slot, &h.ContextKey, &h.IdentityName, &created); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		if h.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			log.Printf("sqlite store: submission %s has bad created_at %q: %v", h.ID, created, err)
		}
		out = append(out, services.StoredSubmission{Header: h})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		answers, err := s.listAnswers(ctx, out[i].Header.ID)
		if err != nil {
			return nil, err
		}
		out[i].Answers = answers
	}
	return out, nil
}

func (s *SQLiteStore) listAnswers(ctx context.Context, submissionID string) ([]services.AnswerRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, evidence_ref
		FROM submission_answers
		WHERE submission_id = ?
		ORDER BY position ASC`, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()
	out := []services.AnswerRecord{}
	for rows.Next() {
		var a services.AnswerRecord
		if err := rows.Scan(&a.Question, &a.Answer, &a.EvidenceRef); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
