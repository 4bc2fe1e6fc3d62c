// Package gdrive uploads evidence photos to a Google Drive folder.
package gdrive

import (
	"context"
	"fmt"
	"net/url"
	"os"

	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// viewURL is the shareable reference recorded for each upload.
const viewURL = "https://drive.google.com/uc?export=view&id="

// Store implements services.EvidenceStore.
type Store struct {
	svc      *drive.Service
	folderID string
}

// NewStore opens the Drive API. Uploads go into folderID, which may live in a
// shared drive.
func NewStore(ctx context.Context, folderID string, opts ...option.ClientOption) (*Store, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}
	opts = append([]option.ClientOption{option.WithScopes(drive.DriveScope)}, opts...)
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive client: %w", err)
	}
	return &Store{svc: svc, folderID: folderID}, nil
}

// Store uploads the file at localPath as name and returns its view link.
// Every upload gets a fresh file id; the submission id is kept as a file
// property.
func (s *Store) Store(ctx context.Context, submissionID, localPath, name string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staged evidence: %w", err)
	}
	defer f.Close()

	meta := &drive.File{
		Name:       name,
		Parents:    []string{s.folderID},
		Properties: map[string]string{"submission_id": submissionID},
	}
	created, err := s.svc.Files.Create(meta).
		Media(f, googleapi.ContentType("image/jpeg")).
		SupportsAllDrives(true).
		Fields("id").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("drive upload %s: %w", name, err)
	}
	if created.Id == "" {
		return "", fmt.Errorf("drive upload %s: empty file id", name)
	}
	return viewURL + url.QueryEscape(created.Id), nil
}
