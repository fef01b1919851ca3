package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

func isRemote(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// fetchDocument reads a base document from an http(s) URL or from a path
// under the storage root. Stored document URLs such as
// /uploads/templates/x.pdf are storage root relative.
func (s *Service) fetchDocument(ctx context.Context, url string) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if isRemote(url) {
		data, err = s.download(ctx, url)
	} else {
		data, err = s.readLocal(url)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch base document %s: %w", url, err)
	}
	return data, nil
}

func (s *Service) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxFileSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxFileSize {
		return nil, fmt.Errorf("document larger than %d bytes", s.maxFileSize)
	}
	return data, nil
}

func (s *Service) readLocal(url string) ([]byte, error) {
	if s.guard == nil {
		return nil, errors.New("no storage root configured")
	}
	path, err := s.guard.Resolve(url)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", filepath.Base(path))
	}
	if info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("document larger than %d bytes", s.maxFileSize)
	}
	return os.ReadFile(path)
}

// writeStored writes data to rel under the storage root through a
// temporary file, so a failed write never replaces an earlier file.
func (s *Service) writeStored(rel string, data []byte) (string, error) {
	if s.guard == nil {
		return "", errors.New("no storage root configured")
	}
	path, err := s.guard.Resolve(rel)
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", rel, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move %s into place: %w", rel, err)
	}
	return path, nil
}
