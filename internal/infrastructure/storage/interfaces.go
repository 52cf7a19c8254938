package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// ErrNotFound is returned by Load when the named blob does not exist
var ErrNotFound = errors.New("artifact not found")

// Blob is one named artifact document
type Blob struct {
	Name string
	Data []byte
}

// Store persists model artifact blobs. Save writes every blob or none of
// them as far as the backend allows, so readers never observe a mix of two
// generations.
type Store interface {
	// Load returns the blob stored under name or ErrNotFound
	Load(ctx context.Context, name string) ([]byte, error)

	// Save writes all blobs
	Save(ctx context.Context, blobs []Blob) error

	// Ping checks backend reachability for health checks
	Ping(ctx context.Context) error

	// Backend names the implementation, e.g. "redis"
	Backend() string

	Close() error
}

var blobName = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]{0,63}$`)

func validateName(name string) error {
	if !blobName.MatchString(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

func validateBlobs(blobs []Blob) error {
	if len(blobs) == 0 {
		return fmt.Errorf("no artifacts to save")
	}
	seen := make(map[string]struct{}, len(blobs))
	for _, b := range blobs {
		if err := validateName(b.Name); err != nil {
			return err
		}
		if _, dup := seen[b.Name]; dup {
			return fmt.Errorf("artifact %q given twice", b.Name)
		}
		seen[b.Name] = struct{}{}
	}
	return nil
}
