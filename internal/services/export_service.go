package services

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// SubmissionFilter narrows a submission listing. Empty fields match all.
type SubmissionFilter struct {
	Date   string
	Outlet string
	Limit  int
}

// StoredSubmission is a recorded header with its answers in question order.
type StoredSubmission struct {
	Header  SubmissionHeader `json:"header"`
	Answers []AnswerRecord   `json:"answers"`
}

type ExportStore interface {
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]StoredSubmission, error)
}

type ExportParams struct {
	Format string
	Date   string
	Outlet string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store  ExportStore
	labels []string
}

func NewExportService(store ExportStore, answerLabels []string) *ExportService {
	if len(answerLabels) == 0 {
		answerLabels = DefaultAnswerLabels
	}
	return &ExportService{store: store, labels: answerLabels}
}

// List returns recorded submissions matching filter.
func (s *ExportService) List(ctx context.Context, filter SubmissionFilter) ([]StoredSubmission, error) {
	if err := validateDate(filter.Date); err != nil {
		return nil, err
	}
	if filter.Limit < 0 {
		return nil, NewInvalidError("limit must not be negative")
	}
	return s.store.ListSubmissions(ctx, filter)
}

func (s *ExportService) ExportCSV(ctx context.Context, params ExportParams) (*ExportResult, error) {
	format := params.Format
	if format == "" {
		format = "long"
	}
	if format != "long" && format != "wide" && format != "summary" {
		return nil, NewInvalidError("unsupported format")
	}
	subs, err := s.List(ctx, SubmissionFilter{Date: params.Date, Outlet: params.Outlet})
	if err != nil {
		return nil, err
	}

	name := "submissions"
	if params.Date != "" {
		name += "-" + params.Date
	}
	var b []byte
	switch format {
	case "long":
		b, err = ExportLongCSV(buildLongRows(subs))
	case "wide":
		b, err = ExportWideCSV(buildWideRows(subs))
	case "summary":
		b, err = ExportSummaryCSV(s.buildSummaryRows(subs), s.labels)
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{Filename: name + "-" + format + ".csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
}

func validateDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return NewInvalidError("date must be YYYY-MM-DD")
	}
	return nil
}

func buildLongRows(subs []StoredSubmission) []LongRow {
	out := []LongRow{}
	for _, sub := range subs {
		h := sub.Header
		for i, a := range sub.Answers {
			out = append(out, LongRow{
				SubmissionID: h.ID,
				Date:         h.Date,
				Slot:         h.Slot,
				Outlet:       h.ContextKey,
				Employee:     h.IdentityName,
				Position:     i + 1,
				Question:     a.Question,
				Answer:       a.Answer,
				EvidenceRef:  a.EvidenceRef,
				SubmittedAt:  h.CreatedAt.Format(time.RFC3339),
			})
		}
	}
	return out
}

func buildWideRows(subs []StoredSubmission) []WideRow {
	out := make([]WideRow, 0, len(subs))
	for _, sub := range subs {
		h := sub.Header
		row := WideRow{SubmissionID: h.ID, Date: h.Date, Slot: h.Slot, Outlet: h.ContextKey, Employee: h.IdentityName, Answers: map[string]string{}}
		for _, a := range sub.Answers {
			q := strings.TrimSpace(a.Question)
			col := q
			// Repeated question texts within one submission get numbered columns.
			for n := 2; ; n++ {
				if _, taken := row.Answers[col]; !taken {
					break
				}
				col = q + " (" + strconv.Itoa(n) + ")"
			}
			row.Answers[col] = a.Answer
		}
		out = append(out, row)
	}
	return out
}

func (s *ExportService) buildSummaryRows(subs []StoredSubmission) []SummaryRow {
	out := make([]SummaryRow, 0, len(subs))
	for _, sub := range subs {
		h := sub.Header
		row := SummaryRow{SubmissionID: h.ID, Date: h.Date, Slot: h.Slot, Outlet: h.ContextKey, Employee: h.IdentityName, Counts: map[string]int{}}
		for _, a := range sub.Answers {
			for _, l := range s.labels {
				if MatchKey(l) == MatchKey(a.Answer) {
					row.Counts[l]++
				}
			}
			if a.EvidenceRef != "" {
				row.Photos++
			}
		}
		out = append(out, row)
	}
	return out
}
