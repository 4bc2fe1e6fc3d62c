package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/soaringjerry/checkbot/internal/services"
)

// Sink appends each submission as one header row and one row per answer. Both
// appends go out in a single batchUpdate, which Sheets applies atomically.
type Sink struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	headerTab     string
	answerTab     string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSink opens the Sheets API with read-write scope.
func NewSink(ctx context.Context, spreadsheetID, headerTab, answerTab string, opts ...option.ClientOption) (*Sink, error) {
	if spreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}, opts...)
	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets client: %w", err)
	}
	return &Sink{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		headerTab:     headerTab,
		answerTab:     answerTab,
	}, nil
}

// Record appends the submission. Sheets has no uniqueness constraint, so
// replays of the same id are not detected here.
func (s *Sink) Record(ctx context.Context, header services.SubmissionHeader, answers []services.AnswerRecord) error {
	headerID, answerID, err := s.resolveSheetIDs(ctx)
	if err != nil {
		return err
	}
	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: appendRequests(headerID, answerID, header, answers),
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("append submission %s: %w", header.ID, err)
	}
	return nil
}

func (s *Sink) resolveSheetIDs(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sheetIDs == nil {
		ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		if err != nil {
			return 0, 0, fmt.Errorf("read spreadsheet %s: %w", s.spreadsheetID, err)
		}
		ids := make(map[string]int64, len(ss.Sheets))
		for _, sh := range ss.Sheets {
			if sh.Properties != nil {
				ids[sh.Properties.Title] = sh.Properties.SheetId
			}
		}
		s.sheetIDs = ids
	}
	headerID, ok := s.sheetIDs[s.headerTab]
	if !ok {
		return 0, 0, fmt.Errorf("tab %q not found in spreadsheet", s.headerTab)
	}
	answerID, ok := s.sheetIDs[s.answerTab]
	if !ok {
		return 0, 0, fmt.Errorf("tab %q not found in spreadsheet", s.answerTab)
	}
	return headerID, answerID, nil
}

func appendRequests(headerSheet, answerSheet int64, header services.SubmissionHeader, answers []services.AnswerRecord) []*sheetsapi.Request {
	headerRow := row(
		header.ID,
		header.Date,
		header.Slot,
		header.ContextKey,
		header.IdentityName,
		header.CreatedAt.UTC().Format(time.RFC3339),
	)
	answerRows := make([]*sheetsapi.RowData, 0, len(answers))
	for _, a := range answers {
		answerRows = append(answerRows, row(header.ID, a.Question, a.Answer, a.EvidenceRef))
	}

	// Sheet id 0 is the first tab, so it is always sent.
	reqs := []*sheetsapi.Request{{
		AppendCells: &sheetsapi.AppendCellsRequest{
			SheetId:         headerSheet,
			Rows:            []*sheetsapi.RowData{headerRow},
			Fields:          "userEnteredValue",
			ForceSendFields: []string{"SheetId"},
		},
	}}
	if len(answerRows) > 0 {
		reqs = append(reqs, &sheetsapi.Request{
			AppendCells: &sheetsapi.AppendCellsRequest{
				SheetId:         answerSheet,
				Rows:            answerRows,
				Fields:          "userEnteredValue",
				ForceSendFields: []string{"SheetId"},
			},
		})
	}
	return reqs
}

func row(values ...string) *sheetsapi.RowData {
	cells := make([]*sheetsapi.CellData, 0, len(values))
	for _, v := range values {
		cells = append(cells, &sheetsapi.CellData{
			UserEnteredValue: &sheetsapi.ExtendedValue{StringValue: &v},
		})
	}
	return &sheetsapi.RowData{Values: cells}
}
