package backup

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// LocalDestination stores backups on the local filesystem
type LocalDestination struct {
	basePath string
	dirMode  os.FileMode
}

// NewLocalDestination creates a new local destination rooted at basePath.
// The directory is created lazily with dirMode.
func NewLocalDestination(basePath string, dirMode os.FileMode) *LocalDestination {
	if dirMode == 0 {
		dirMode = 0755
	}
	return &LocalDestination{
		basePath: basePath,
		dirMode:  dirMode,
	}
}

// Upload writes the backup to a temporary file in the destination and
// renames it into place, so a partially written backup is never visible
// under its final name. sizeBytes < 0 skips the size check.
func (ld *LocalDestination) Upload(filename string, reader io.Reader, sizeBytes int64) error {
	if err := os.MkdirAll(ld.basePath, ld.dirMode); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	destPath := ld.Path(filename)
	tmp, err := os.CreateTemp(ld.basePath, "."+filename+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	tmpPath := tmp.Name()

	written, err := io.Copy(tmp, reader)
	if err == nil && sizeBytes >= 0 && written != sizeBytes {
		err = fmt.Errorf("size mismatch: expected %d bytes, wrote %d bytes", sizeBytes, written)
	}
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0644)
	}
	if err == nil {
		err = os.Rename(tmpPath, destPath)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write backup file: %w", err)
	}

	log.Printf("[LocalDest] Stored %s (%d bytes)", filename, written)
	return nil
}

// Delete removes a backup file from the local destination
func (ld *LocalDestination) Delete(filename string) error {
	if err := os.Remove(ld.Path(filename)); err != nil {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	return nil
}

// List returns all backup files in the local destination. A missing
// directory yields an empty list.
func (ld *LocalDestination) List() ([]BackupFile, error) {
	entries, err := os.ReadDir(ld.basePath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var files []BackupFile
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Printf("[LocalDest] Warning: Failed to get info for %s: %v", entry.Name(), err)
			continue
		}

		files = append(files, BackupFile{
			Filename:  entry.Name(),
			SizeBytes: info.Size(),
			CreatedAt: info.ModTime().Unix(),
		})
	}

	return files, nil
}

// GetType returns the destination type
func (ld *LocalDestination) GetType() string {
	return "local"
}

// Path returns the absolute location of filename in this destination
func (ld *LocalDestination) Path(filename string) string {
	return filepath.Join(ld.basePath, filename)
}

// Exists checks if a backup file exists
func (ld *LocalDestination) Exists(filename string) bool {
	_, err := os.Stat(ld.Path(filename))
	return err == nil
}
