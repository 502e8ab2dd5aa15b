package blobstore

import "context"

// FileKind names the TLS artifact kinds stored per environment.
type FileKind string

const (
	FileCA   FileKind = "ca"
	FileCert FileKind = "cert"
	FileKey  FileKind = "key"
)

func (k FileKind) filename() string {
	return string(k) + ".pem"
}

// Store persists security artifacts keyed by environment identifier. The
// registration coordinator only ever handles the returned opaque paths;
// the storage medium stays behind this interface.
type Store interface {
	// Store writes one artifact into the per-environment folder and returns
	// the path reference to persist on the record.
	Store(ctx context.Context, folder string, kind FileKind, data []byte) (string, error)
	// Fetch reads an artifact back by its path reference.
	Fetch(ctx context.Context, path string) ([]byte, error)
	// Remove deletes every artifact in the per-environment folder.
	Remove(ctx context.Context, folder string) error
}
