package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecorderExposesCounters(t *testing.T) {
	recorder := NewRecorder()
	recorder.ObserveOutcome("SUCCESS")
	recorder.ObserveOutcome("INVALID_TOKEN")
	recorder.ObserveOutcome("INVALID_TOKEN")
	recorder.AddBackupBytes(42)
	recorder.AddBackupBytes(-1)

	server := httptest.NewServer(recorder.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("scrape failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	body := string(data)

	for _, want := range []string{
		`maintenance_requests_total{code="INVALID_TOKEN"} 2`,
		`maintenance_requests_total{code="SUCCESS"} 1`,
		`maintenance_backup_bytes_total 42`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var recorder *Recorder
	recorder.ObserveOutcome("SUCCESS")
	recorder.AddBackupBytes(10)
}
