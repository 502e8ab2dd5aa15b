package blobstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps TLS artifacts under <root>/tls/<folder>/<kind>.pem.
// This is the default backend.
type FilesystemStore struct {
	root string
}

func NewFilesystemStore(root string) *FilesystemStore {
	return &FilesystemStore{root: root}
}

func (s *FilesystemStore) Store(_ context.Context, folder string, kind FileKind, data []byte) (string, error) {
	dir := filepath.Join(s.root, "tls", folder)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create artifact folder %s: %w", dir, err)
	}

	path := filepath.Join(dir, kind.filename())
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write %s artifact: %w", kind, err)
	}
	return path, nil
}

func (s *FilesystemStore) Fetch(_ context.Context, path string) ([]byte, error) {
	clean := filepath.Clean(path)
	if !strings.HasPrefix(clean, filepath.Clean(s.root)+string(filepath.Separator)) {
		return nil, fmt.Errorf("artifact path %s escapes store root", path)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

func (s *FilesystemStore) Remove(_ context.Context, folder string) error {
	dir := filepath.Join(s.root, "tls", folder)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove artifact folder %s: %w", dir, err)
	}
	return nil
}
