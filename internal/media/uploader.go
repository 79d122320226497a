// Package media abstracts where uploaded images end up. The hosting backend
// is an external collaborator; the service only depends on Uploader.
package media

import (
	"context"
	"io"
)

// Uploader stores a single uploaded file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
}
