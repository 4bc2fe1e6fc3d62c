package services

import (
	"encoding/csv"
	"strings"
	"testing"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func TestExportLongCSV(t *testing.T) {
	rows := []LongRow{
		{SubmissionID: "S1", Date: "2025-03-14", Slot: "Morning", Outlet: "Outlet A", Employee: "Asha", Position: 1, Question: "Floor clean?", Answer: "Yes", SubmittedAt: "2025-03-14T10:00:00+05:30"},
		{SubmissionID: "S1", Date: "2025-03-14", Slot: "Morning", Outlet: "Outlet A", Employee: "Asha", Position: 2, Question: "Fridge, below 5C?", Answer: "No", EvidenceRef: "evidence/x.jpg", SubmittedAt: "2025-03-14T10:00:00+05:30"},
	}
	b, err := ExportLongCSV(rows)
	if err != nil {
		t.Fatalf("export long: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 1+len(rows) {
		t.Fatalf("want %d rows, got %d", 1+len(rows), len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "submission_id,date,slot,outlet,employee,position,question,answer,evidence_ref,submitted_at" {
		t.Fatalf("bad header: %s", got)
	}
	if recs[2][6] != "Fridge, below 5C?" || recs[2][8] != "evidence/x.jpg" {
		t.Fatalf("bad answer row: %v", recs[2])
	}
}

func TestExportWideCSV(t *testing.T) {
	rows := []WideRow{
		{SubmissionID: "S2", Employee: "Ravi", Answers: map[string]string{"B": "No", "A": "Yes"}},
		{SubmissionID: "S1", Employee: "Asha", Answers: map[string]string{"A": "No"}},
	}
	b, err := ExportWideCSV(rows)
	if err != nil {
		t.Fatalf("export wide: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("rows mismatch: %d", len(recs))
	}
	if strings.Join(recs[0], ",") != "submission_id,date,slot,outlet,employee,A,B" {
		t.Fatalf("header mismatch: %v", recs[0])
	}
	if recs[1][0] != "S2" || recs[2][6] != "" {
		t.Fatalf("row order or blanks wrong: %v", recs)
	}
}

func TestExportSummaryCSV(t *testing.T) {
	rows := []SummaryRow{
		{SubmissionID: "S1", Counts: map[string]int{"Yes": 2, "No": 1}, Photos: 1},
	}
	b, err := ExportSummaryCSV(rows, []string{"Yes", "No"})
	if err != nil {
		t.Fatalf("export summary: %v", err)
	}
	recs, err := readCSV(b)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if strings.Join(recs[0], ",") != "submission_id,date,slot,outlet,employee,count_yes,count_no,photos" {
		t.Fatalf("header mismatch: %v", recs[0])
	}
	if strings.Join(recs[1][5:], ",") != "2,1,1" {
		t.Fatalf("counts wrong: %v", recs[1])
	}
}
