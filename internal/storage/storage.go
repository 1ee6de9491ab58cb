package storage

import "context"

// Store persists uploaded and generated images and serves them back. The
// rest of the system only sees this narrow contract; whether bytes land on
// local disk or in an object store is a deployment choice.
type Store interface {
	// Save writes the bytes under name and returns a public URL for them.
	Save(ctx context.Context, name string, data []byte) (string, error)
	// Read returns the stored bytes for name.
	Read(ctx context.Context, name string) ([]byte, error)
	// Exists reports whether name is stored.
	Exists(ctx context.Context, name string) bool
}
