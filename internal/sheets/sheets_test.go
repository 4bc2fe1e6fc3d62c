package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/soaringjerry/checkbot/internal/services"
)

type stubReader map[string][][]interface{}

func (s stubReader) read(ctx context.Context, tab string) ([][]interface{}, error) {
	v, ok := s[tab]
	if !ok {
		return nil, errors.New("no such tab " + tab)
	}
	return v, nil
}

var testTabs = Tabs{Employees: "EmployeeRegister", Roster: "Roster", Checklist: "ChecklistQuestions"}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	d := newDirectory(stubReader{
		"EmployeeRegister": {
			{"Full Name", "Phone Number", "Employee ID"},
			{"Asha Rao", "+91 98765-43210", "E1"},
			{"No Id", "9000000000"},
			{"Ravi Kumar", "9123456789", "E2"},
			{"Meera Iyer", "99887 76655", "E3"},
		},
		"Roster": {
			{"employee id", "DATE", "Outlet"},
			{"E1", "13/03/2025", "Old Town"},
			{"E1", "14/03/2025", "Indiranagar"},
			{"E2", "2025-03-13", "Koramangala"},
			{"E3", "15/03/2025", "Indiranagar"},
		},
		"ChecklistQuestions": {
			{"Question_Text", "Image Required", "Applicable Checklist", "Time_Slot"},
			{"Is the floor clean?", "No", "indiranagar", "Morning"},
			{"Photo of the counter", " YES ", "Indiranagar ", "morning"},
			{"Lights off?", "No", "Indiranagar", "Closing"},
			{"", "No", "Indiranagar", "Morning"},
			{"Fridge temperature", "yes", "Koramangala", "Morning"},
		},
	}, testTabs, loc)
	// 2025-03-13 19:00 UTC is already the 14th in India.
	d.now = func() time.Time { return time.Date(2025, 3, 13, 19, 0, 0, 0, time.UTC) }
	return d
}

func TestDirectoryResolve(t *testing.T) {
	d := testDirectory(t)
	ctx := context.Background()

	id, err := d.Resolve(ctx, "9876543210")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if id.Name != "Asha Rao" || id.EmployeeID != "E1" || id.ContextKey != "Indiranagar" {
		t.Fatalf("identity = %+v", id)
	}

	// E2 is rostered only for yesterday and E3 only for tomorrow.
	for _, phone := range []string{"9123456789", "9988776655", "9000000000", "5550000000", ""} {
		if _, err := d.Resolve(ctx, phone); !errors.Is(err, services.ErrUnresolved) {
			t.Fatalf("Resolve(%q) = %v, want ErrUnresolved", phone, err)
		}
	}
}

func TestDirectoryReadError(t *testing.T) {
	d := newDirectory(stubReader{}, testTabs, time.UTC)
	_, err := d.Resolve(context.Background(), "9876543210")
	if err == nil || errors.Is(err, services.ErrUnresolved) {
		t.Fatalf("read failure should surface as an error, got %v", err)
	}
}

func TestDirectoryQuestions(t *testing.T) {
	d := testDirectory(t)
	qs, err := d.QuestionsFor(context.Background(), " INDIRANAGAR", "Morning")
	if err != nil {
		t.Fatalf("QuestionsFor: %v", err)
	}
	want := []services.QuestionRecord{
		{Text: "Is the floor clean?"},
		{Text: "Photo of the counter", RequiresPhoto: true},
	}
	if len(qs) != len(want) {
		t.Fatalf("questions = %+v", qs)
	}
	for i := range want {
		if qs[i] != want[i] {
			t.Fatalf("question %d = %+v, want %+v", i, qs[i], want[i])
		}
	}

	qs, _ = d.QuestionsFor(context.Background(), "Indiranagar", "Mid Day")
	if len(qs) != 0 {
		t.Fatalf("expected no questions, got %+v", qs)
	}
}

type fakeSheets struct {
	mu      sync.Mutex
	gets    int
	batches []sheetsapi.BatchUpdateSpreadsheetRequest
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/spreadsheets/out-1"):
		f.gets++
		_, _ = w.Write([]byte(`{"sheets":[
			{"properties":{"sheetId":0,"title":"ChecklistSubmissions"}},
			{"properties":{"sheetId":77,"title":"ChecklistAnswers"}}]}`))
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/spreadsheets/out-1:batchUpdate"):
		var req sheetsapi.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.batches = append(f.batches, req)
		_, _ = w.Write([]byte(`{"spreadsheetId":"out-1"}`))
	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestSink(t *testing.T, headerTab string) (*Sink, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	sink, err := NewSink(context.Background(), "out-1", headerTab, "ChecklistAnswers",
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewSink: %v", err)
	}
	return sink, fake
}

func cellText(r *sheetsapi.RowData, i int) string {
	v := r.Values[i].UserEnteredValue
	if v == nil || v.StringValue == nil {
		return ""
	}
	return *v.StringValue
}

func TestSinkRecordSingleBatch(t *testing.T) {
	sink, fake := newTestSink(t, "ChecklistSubmissions")
	header := services.SubmissionHeader{
		ID:           "sub1",
		Date:         "2025-03-14",
		Slot:         "Morning",
		ContextKey:   "Indiranagar",
		IdentityName: "Asha Rao",
		CreatedAt:    time.Date(2025, 3, 14, 4, 30, 0, 0, time.UTC),
	}
	answers := []services.AnswerRecord{
		{Question: "Is the floor clean?", Answer: "Yes"},
		{Question: "Photo of the counter", Answer: "No", EvidenceRef: "https://drive.google.com/uc?export=view&id=abc"},
	}
	ctx := context.Background()
	if err := sink.Record(ctx, header, answers); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := sink.Record(ctx, header, nil); err != nil {
		t.Fatalf("Record without answers: %v", err)
	}

	if fake.gets != 1 {
		t.Fatalf("sheet ids fetched %d times, want 1", fake.gets)
	}
	if len(fake.batches) != 2 {
		t.Fatalf("batchUpdate calls = %d", len(fake.batches))
	}
	reqs := fake.batches[0].Requests
	if len(reqs) != 2 {
		t.Fatalf("requests in first batch = %d", len(reqs))
	}
	head, ans := reqs[0].AppendCells, reqs[1].AppendCells
	if head.SheetId != 0 || ans.SheetId != 77 {
		t.Fatalf("sheet ids = %d/%d", head.SheetId, ans.SheetId)
	}
	if len(head.Rows) != 1 || cellText(head.Rows[0], 0) != "sub1" || cellText(head.Rows[0], 5) != "2025-03-14T04:30:00Z" {
		t.Fatalf("header row = %+v", head.Rows)
	}
	if len(ans.Rows) != 2 || cellText(ans.Rows[1], 0) != "sub1" || cellText(ans.Rows[1], 3) != answers[1].EvidenceRef {
		t.Fatalf("answer rows = %+v", ans.Rows)
	}
	if len(fake.batches[1].Requests) != 1 {
		t.Fatalf("empty answers should only append the header")
	}
}

func TestSinkMissingTab(t *testing.T) {
	sink, fake := newTestSink(t, "Nope")
	err := sink.Record(context.Background(), services.SubmissionHeader{ID: "x"}, nil)
	if err == nil || !strings.Contains(err.Error(), `"Nope"`) {
		t.Fatalf("expected missing tab error, got %v", err)
	}
	if len(fake.batches) != 0 {
		t.Fatalf("nothing should be written")
	}
}
