package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"
)

func writeBackup(t *testing.T, dir, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(name), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	mtime := time.Now().Add(-age)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}
}

func remaining(t *testing.T, dest *LocalDestination) []string {
	t.Helper()
	files, err := dest.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	var names []string
	for _, f := range files {
		names = append(names, f.Filename)
	}
	sort.Strings(names)
	return names
}

func TestRetentionKeepsNewest(t *testing.T) {
	dir := t.TempDir()
	for i := 1; i <= 4; i++ {
		writeBackup(t, dir, fmt.Sprintf("sys_backup_%d.html", i), time.Duration(5-i)*time.Hour)
	}
	writeBackup(t, dir, "unrelated.txt", 48*time.Hour)

	dest := NewLocalDestination(dir, 0755)
	deleted, err := NewRetentionManager("sys_backup_", 2).Enforce(dest)
	if err != nil {
		t.Fatalf("enforce failed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d", deleted)
	}

	got := remaining(t, dest)
	want := []string{"sys_backup_3.html", "sys_backup_4.html", "unrelated.txt"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestRetentionDisabled(t *testing.T) {
	dir := t.TempDir()
	writeBackup(t, dir, "sys_backup_1.html", time.Hour)
	writeBackup(t, dir, "sys_backup_2.html", 0)

	deleted, err := NewRetentionManager("sys_backup_", 0).Enforce(NewLocalDestination(dir, 0755))
	if err != nil || deleted != 0 {
		t.Fatalf("expected nothing deleted, got %d (%v)", deleted, err)
	}
}

func TestRetentionRunner(t *testing.T) {
	if _, err := NewRetentionRunner("not a schedule", NewRetentionManager("p", 1), nil); err == nil {
		t.Fatalf("expected invalid schedule to be rejected")
	}
	if err := ValidateSchedule("@hourly"); err != nil {
		t.Fatalf("expected @hourly to be valid: %v", err)
	}

	dir := t.TempDir()
	writeBackup(t, dir, "sys_backup_1.html", time.Hour)
	writeBackup(t, dir, "sys_backup_2.html", 0)
	dest := NewLocalDestination(dir, 0755)

	runner, err := NewRetentionRunner("*/5 * * * *", NewRetentionManager("sys_backup_", 1), func() []Destination {
		return []Destination{dest, nil}
	})
	if err != nil {
		t.Fatalf("failed to create runner: %v", err)
	}
	runner.RunOnce()

	if got := remaining(t, dest); len(got) != 1 || got[0] != "sys_backup_2.html" {
		t.Fatalf("expected only newest backup to remain, got %v", got)
	}
}
