package services

import (
	"bytes"
	"encoding/csv"
	"sort"
	"strconv"
)

// LongRow is one answer line of the long report.
type LongRow struct {
	SubmissionID string
	Date         string
	Slot         string
	Outlet       string
	Employee     string
	Position     int
	Question     string
	Answer       string
	EvidenceRef  string
	SubmittedAt  string // RFC3339
}

// ExportLongCSV renders rows into a long-format CSV, one answer per line.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"submission_id", "date", "slot", "outlet", "employee", "position", "question", "answer", "evidence_ref", "submitted_at"})
	for _, r := range rows {
		rec := []string{
			r.SubmissionID,
			r.Date,
			r.Slot,
			r.Outlet,
			r.Employee,
			strconv.Itoa(r.Position),
			r.Question,
			r.Answer,
			r.EvidenceRef,
			r.SubmittedAt,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WideRow is one submission of the wide report with its answers keyed by
// question text.
type WideRow struct {
	SubmissionID string
	Date         string
	Slot         string
	Outlet       string
	Employee     string
	Answers      map[string]string
}

// ExportWideCSV renders one row per submission and one column per question.
// Question columns are sorted for stable output; rows keep their order.
func ExportWideCSV(rows []WideRow) ([]byte, error) {
	qset := map[string]struct{}{}
	for _, r := range rows {
		for q := range r.Answers {
			qset[q] = struct{}{}
		}
	}
	questions := make([]string, 0, len(qset))
	for q := range qset {
		questions = append(questions, q)
	}
	sort.Strings(questions)

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"submission_id", "date", "slot", "outlet", "employee"}, questions...)
	_ = w.Write(header)
	for _, r := range rows {
		rec := make([]string, 0, len(header))
		rec = append(rec, r.SubmissionID, r.Date, r.Slot, r.Outlet, r.Employee)
		for _, q := range questions {
			rec = append(rec, r.Answers[q])
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// SummaryRow counts answers per submission.
type SummaryRow struct {
	SubmissionID string
	Date         string
	Slot         string
	Outlet       string
	Employee     string
	Counts       map[string]int
	Photos       int
}

// ExportSummaryCSV renders per-submission answer counts. labels fixes the
// count columns and their order.
func ExportSummaryCSV(rows []SummaryRow, labels []string) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"submission_id", "date", "slot", "outlet", "employee"}
	for _, l := range labels {
		header = append(header, "count_"+MatchKey(l))
	}
	header = append(header, "photos")
	_ = w.Write(header)
	for _, r := range rows {
		rec := []string{r.SubmissionID, r.Date, r.Slot, r.Outlet, r.Employee}
		for _, l := range labels {
			rec = append(rec, strconv.Itoa(r.Counts[l]))
		}
		rec = append(rec, strconv.Itoa(r.Photos))
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
