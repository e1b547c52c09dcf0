package backup

import (
	"fmt"
	"io"

	"github.com/yourusername/maintenance-gate/internal/config"
)

// Destination represents a backup storage destination
type Destination interface {
	// Upload stores a backup read from reader under filename
	Upload(filename string, reader io.Reader, sizeBytes int64) error

	// Delete removes a backup from the destination
	Delete(filename string) error

	// List returns all backup files at the destination
	List() ([]BackupFile, error)

	// GetType returns the destination type identifier
	GetType() string
}

// BackupFile represents a file in a backup destination
type BackupFile struct {
	Filename  string
	SizeBytes int64
	CreatedAt int64 // Unix timestamp
}

// NewDestination creates a mirror destination from config. It returns
// (nil, nil) when no mirror is configured.
func NewDestination(cfg config.MirrorConfig) (Destination, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "local":
		if cfg.Path == "" {
			return nil, fmt.Errorf("local mirror requires a path")
		}
		return NewLocalDestination(cfg.Path, 0755), nil
	case "sftp":
		return NewSFTPDestination(cfg)
	case "s3":
		return NewS3Destination(cfg)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Type)
	}
}
