package gdrive

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"google.golang.org/api/option"
)

type fakeDrive struct {
	mu     sync.Mutex
	query  string
	body   string
	status int
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.query = r.URL.RawQuery
	f.body = string(b)
	status := f.status
	f.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"File not found: folder-1"}}`))
		return
	}
	_, _ = w.Write([]byte(`{"id":"file-123"}`))
}

func newTestStore(t *testing.T, fake *fakeDrive) *Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	s, err := NewStore(context.Background(), "folder-1",
		option.WithEndpoint(srv.URL+"/drive/v3/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func stagedFile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "Asha_Q2.jpg")
	if err := os.WriteFile(p, []byte("jpeg-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestStoreUploadsIntoFolder(t *testing.T) {
	fake := &fakeDrive{}
	s := newTestStore(t, fake)

	ref, err := s.Store(context.Background(), "sub-1", stagedFile(t), "Morning_Asha_Q2.jpg")
	if err != nil {
		t.Fatalf("Store: %v", err)
	}
	if ref != "https://drive.google.com/uc?export=view&id=file-123" {
		t.Fatalf("ref = %q", ref)
	}
	if !strings.Contains(fake.query, "supportsAllDrives=true") {
		t.Fatalf("query = %q", fake.query)
	}
	for _, want := range []string{"Morning_Asha_Q2.jpg", "folder-1", "jpeg-bytes", `"submission_id":"sub-1"`} {
		if !strings.Contains(fake.body, want) {
			t.Fatalf("upload body missing %q", want)
		}
	}
}

func TestStoreErrors(t *testing.T) {
	s := newTestStore(t, &fakeDrive{status: http.StatusNotFound})
	if _, err := s.Store(context.Background(), "sub-1", stagedFile(t), "x.jpg"); err == nil || !strings.Contains(err.Error(), "x.jpg") {
		t.Fatalf("expected upload error, got %v", err)
	}
	if _, err := s.Store(context.Background(), "sub-1", filepath.Join(t.TempDir(), "missing.jpg"), "x.jpg"); err == nil {
		t.Fatalf("missing staged file should fail")
	}
	if _, err := NewStore(context.Background(), ""); err == nil {
		t.Fatalf("empty folder id should fail")
	}
}
