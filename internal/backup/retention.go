package backup

import (
	"fmt"
	"log"
	"sort"
	"strings"
)

// RetentionManager keeps the newest backups whose names carry a prefix and
// deletes the rest
type RetentionManager struct {
	prefix string
	keep   int
}

// NewRetentionManager creates a retention manager. keep <= 0 keeps everything.
func NewRetentionManager(prefix string, keep int) *RetentionManager {
	return &RetentionManager{prefix: prefix, keep: keep}
}

// Enforce applies the policy to dest and returns how many backups were deleted
func (rm *RetentionManager) Enforce(dest Destination) (int, error) {
	if rm.keep <= 0 || dest == nil {
		return 0, nil
	}

	files, err := dest.List()
	if err != nil {
		return 0, fmt.Errorf("failed to list backups: %w", err)
	}

	var candidates []BackupFile
	for _, f := range files {
		if strings.HasPrefix(f.Filename, rm.prefix) {
			candidates = append(candidates, f)
		}
	}

	if len(candidates) <= rm.keep {
		return 0, nil
	}

	// Newest first; names embed the timestamp so they break mtime ties
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].CreatedAt != candidates[j].CreatedAt {
			return candidates[i].CreatedAt > candidates[j].CreatedAt
		}
		return candidates[i].Filename > candidates[j].Filename
	})

	deleted := 0
	for _, f := range candidates[rm.keep:] {
		if err := dest.Delete(f.Filename); err != nil {
			log.Printf("[Retention] Error deleting %s from %s: %v", f.Filename, dest.GetType(), err)
			continue
		}
		deleted++
	}

	log.Printf("[Retention] %s: kept %d, deleted %d", dest.GetType(), rm.keep, deleted)
	return deleted, nil
}
