package backup

import (
	"log"
	"os"
	"sync"
)

// Mirror copies finished local backups to a secondary destination in the
// background. Failures are logged only.
type Mirror struct {
	dest Destination
	wg   sync.WaitGroup
}

// NewMirror returns nil when dest is nil; a nil *Mirror ignores all calls.
func NewMirror(dest Destination) *Mirror {
	if dest == nil {
		return nil
	}
	return &Mirror{dest: dest}
}

// Destination returns the secondary destination
func (m *Mirror) Destination() Destination {
	if m == nil {
		return nil
	}
	return m.dest
}

// Replicate uploads the file at localPath as name
func (m *Mirror) Replicate(name, localPath string) {
	if m == nil {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.upload(name, localPath); err != nil {
			log.Printf("[Mirror] Failed to replicate %s to %s: %v", name, m.dest.GetType(), err)
		}
	}()
}

func (m *Mirror) upload(name, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	return m.dest.Upload(name, file, info.Size())
}

// Wait blocks until in-flight replications finish
func (m *Mirror) Wait() {
	if m == nil {
		return
	}
	m.wg.Wait()
}
