// Package storage defines the file-system abstraction used for content
// sources and build output.
package storage

import "github.com/starford/ter/internal/models"

// Provider is the interface for rooted file operations. All paths are
// relative to the provider root and use forward slashes.
type Provider interface {
	// List returns metadata for every markdown source under dir, skipping
	// hidden and underscored entries.
	List(dir string) ([]models.SourceMetadata, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
}
