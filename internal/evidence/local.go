// Package evidence keeps evidence photos on the local filesystem.
package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore implements services.EvidenceStore by copying staged files into
// one directory per submission. A later upload with the same name in the same
// submission replaces the earlier one.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("evidence dir is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve evidence dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create evidence dir: %w", err)
	}
	return &LocalStore{dir: abs}, nil
}

// Store copies localPath to <dir>/<submissionID>/<name> and returns the
// destination path.
func (s *LocalStore) Store(ctx context.Context, submissionID, localPath, name string) (string, error) {
	sub, err := pathElem(submissionID)
	if err != nil {
		return "", fmt.Errorf("invalid submission id %q", submissionID)
	}
	base, err := pathElem(name)
	if err != nil {
		return "", fmt.Errorf("invalid evidence name %q", name)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open staged evidence: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(s.dir, sub)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create submission dir: %w", err)
	}
	dst := filepath.Join(dir, base)
	tmp, err := os.CreateTemp(dir, "."+base+".*")
	if err != nil {
		return "", fmt.Errorf("create evidence file: %w", err)
	}
	_, copyErr := io.Copy(tmp, src)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write evidence %s: %w", base, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write evidence %s: %w", base, err)
	}
	return dst, nil
}

// pathElem reduces s to a single path element that cannot leave its parent.
func pathElem(s string) (string, error) {
	base := filepath.Base(filepath.Clean("/" + strings.TrimSpace(s)))
	if base == "/" || base == "." || base == ".." {
		return "", errors.New("empty path element")
	}
	return base, nil
}
