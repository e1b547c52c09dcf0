package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/maintenance-gate/internal/auth"
	"github.com/yourusername/maintenance-gate/internal/logging"
	"github.com/yourusername/maintenance-gate/internal/maintenance"
	"github.com/yourusername/maintenance-gate/internal/metrics"
)

const (
	testPath  = "/api/v1/maintenance"
	testToken = "s3cret"
	validBody = `{"operation":"system_reset","authorized":true,"token":"s3cret"}`
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeRuns collects run records in memory
type fakeRuns struct {
	mu   sync.Mutex
	runs []logging.RunRecord
}

func (f *fakeRuns) RecordRun(run logging.RunRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
}

func newTestRouter(t *testing.T, dir string, mutate func(*maintenance.Options)) (*gin.Engine, *fakeRuns) {
	t.Helper()

	opts := maintenance.Options{
		Operation:    "system_reset",
		BaseDir:      dir,
		TargetFile:   "index.html",
		BackupDir:    "sys_backups",
		BackupPrefix: "sys_backup_",
		DirMode:      0755,
		AuditLog:     "system_maintenance.log",
		Audit:        logging.NewAuditLogger(nil),
	}
	if mutate != nil {
		mutate(&opts)
	}

	runs := &fakeRuns{}
	handler := NewMaintenanceHandler(
		maintenance.NewGate("system_reset", auth.NewStaticVerifier(testToken)),
		maintenance.NewExecutor(opts),
		runs,
		metrics.NewRecorder(),
		nil,
	)

	router := gin.New()
	router.Any(testPath, handler.Handle)
	return router, runs
}

func doRequest(router *gin.Engine, method, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, testPath, nil)
	} else {
		req = httptest.NewRequest(method, testPath, strings.NewReader(body))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "maintenance-test")
	req.RemoteAddr = "192.0.2.10:52000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, w.Body.String())
	}
	return body
}

func writeTarget(t *testing.T, dir string, content string) string {
	t.Helper()
	path := filepath.Join(dir, "index.html")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write target: %v", err)
	}
	return path
}

func assertUntouched(t *testing.T, dir, targetPath, content string) {
	t.Helper()
	data, err := os.ReadFile(targetPath)
	if err != nil || string(data) != content {
		t.Fatalf("expected target untouched, err=%v", err)
	}
	for _, name := range []string{"sys_backups", "system_maintenance.log"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("expected %s not to exist", name)
		}
	}
}

func TestMaintenanceRejectsOtherMethods(t *testing.T) {
	dir := t.TempDir()
	targetPath := writeTarget(t, dir, "home")
	router, runs := newTestRouter(t, dir, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		w := doRequest(router, method, validBody)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", method, w.Code)
		}
		body := decodeBody(t, w)
		if body["status"] != "error" || body["code"] != "METHOD_NOT_SUPPORTED" || body["message"] != "Request method not supported." {
			t.Fatalf("%s: unexpected body %v", method, body)
		}
	}

	assertUntouched(t, dir, targetPath, "home")
	if len(runs.runs) != 0 {
		t.Fatalf("expected no recorded runs")
	}
}

func TestMaintenancePreflight(t *testing.T) {
	dir := t.TempDir()
	targetPath := writeTarget(t, dir, "home")
	router, _ := newTestRouter(t, dir, nil)

	w := doRequest(router, http.MethodOptions, validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
	assertUntouched(t, dir, targetPath, "home")
}

func TestMaintenanceAuthorizationFailures(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"no body", "", http.StatusBadRequest, "INVALID_OPERATION"},
		{"garbage", "{not json", http.StatusBadRequest, "INVALID_OPERATION"},
		{"wrong operation", `{"operation":"drop_all","authorized":true,"token":"s3cret"}`, http.StatusBadRequest, "INVALID_OPERATION"},
		{"authorized string", `{"operation":"system_reset","authorized":"true","token":"s3cret"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"authorized one", `{"operation":"system_reset","authorized":1,"token":"s3cret"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"authorized missing", `{"operation":"system_reset","token":"s3cret"}`, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong token", `{"operation":"system_reset","authorized":true,"token":"nope"}`, http.StatusForbidden, "INVALID_TOKEN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			targetPath := writeTarget(t, dir, "home")
			router, _ := newTestRouter(t, dir, nil)

			w := doRequest(router, http.MethodPost, tc.body)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if body := decodeBody(t, w); body["code"] != tc.code || body["status"] != "error" {
				t.Fatalf("unexpected body %v", body)
			}
			assertUntouched(t, dir, targetPath, "home")
		})
	}
}

func TestMaintenanceHappyPathThenTargetNotFound(t *testing.T) {
	dir := t.TempDir()
	content := "<!doctype html><title>home</title>\n"
	targetPath := writeTarget(t, dir, content)
	router, runs := newTestRouter(t, dir, nil)

	w := doRequest(router, http.MethodPost, validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	body := decodeBody(t, w)
	if body["status"] != "success" || body["backup_created"] != true {
		t.Fatalf("unexpected body %v", body)
	}
	if body["operation"] != "system_reset" || body["target_processed"] != "index.html" {
		t.Fatalf("unexpected body %v", body)
	}
	reference, _ := body["backup_reference"].(string)
	if !regexp.MustCompile(`^sys_backup_\d{4}-\d{2}-\d{2}_\d{2}-\d{2}-\d{2}\.html$`).MatchString(reference) {
		t.Fatalf("unexpected backup reference %q", reference)
	}
	if id, _ := body["operation_id"].(string); !regexp.MustCompile(`^MAINT_[0-9A-F]{32}$`).MatchString(id) {
		t.Fatalf("unexpected operation id %q", id)
	}
	if !regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`).MatchString(body["maintenance_time"].(string)) {
		t.Fatalf("unexpected maintenance_time %v", body["maintenance_time"])
	}

	if _, err := os.Stat(targetPath); !os.IsNotExist(err) {
		t.Fatalf("expected target to be removed")
	}
	backup, err := os.ReadFile(filepath.Join(dir, "sys_backups", reference))
	if err != nil || !bytes.Equal(backup, []byte(content)) {
		t.Fatalf("expected byte-identical backup, err=%v", err)
	}

	logData, err := os.ReadFile(filepath.Join(dir, "system_maintenance.log"))
	if err != nil {
		t.Fatalf("expected audit log: %v", err)
	}
	if !strings.Contains(string(logData), "System maintenance initiated from IP: 192.0.2.10 Agent: maintenance-test") {
		t.Fatalf("unexpected audit line %q", logData)
	}

	second := doRequest(router, http.MethodPost, validBody)
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200 on second run, got %d", second.Code)
	}
	if body := decodeBody(t, second); body["code"] != "TARGET_NOT_FOUND" || body["message"] != "Target file not located: index.html" {
		t.Fatalf("unexpected second body %v", body)
	}

	if len(runs.runs) != 2 || runs.runs[0].Code != "SUCCESS" || runs.runs[1].Code != "TARGET_NOT_FOUND" {
		t.Fatalf("unexpected run records %+v", runs.runs)
	}
	if runs.runs[0].BackupReference != reference {
		t.Fatalf("expected backup reference to be recorded")
	}
}

func TestMaintenanceBackupFailureStillDeletes(t *testing.T) {
	dir := t.TempDir()
	targetPath := writeTarget(t, dir, "home")
	if err := os.WriteFile(filepath.Join(dir, "sys_backups"), []byte("in the way"), 0644); err != nil {
		t.Fatalf("failed to block backup dir: %v", err)
	}
	router, _ := newTestRouter(t, dir, nil)

	w := doRequest(router, http.MethodPost, validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"backup_reference":null`) {
		t.Fatalf("expected null backup_reference, got %s", w.Body.String())
	}
	body := decodeBody(t, w)
	if body["status"] != "success" || body["backup_created"] != false {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := os.Stat(targetPath); !os.IsNotExist(err) {
		t.Fatalf("expected target removed")
	}
}

func TestMaintenanceRequireBackup(t *testing.T) {
	dir := t.TempDir()
	targetPath := writeTarget(t, dir, "home")
	if err := os.WriteFile(filepath.Join(dir, "sys_backups"), []byte("in the way"), 0644); err != nil {
		t.Fatalf("failed to block backup dir: %v", err)
	}
	router, _ := newTestRouter(t, dir, func(o *maintenance.Options) { o.RequireBackup = true })

	w := doRequest(router, http.MethodPost, validBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if body := decodeBody(t, w); body["code"] != "BACKUP_FAILED" {
		t.Fatalf("unexpected body %v", body)
	}
	if _, err := os.Stat(targetPath); err != nil {
		t.Fatalf("expected target to survive: %v", err)
	}
}

func TestMaintenanceAccessDenied(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root bypasses file permissions")
	}

	dir := t.TempDir()
	targetPath := writeTarget(t, dir, "home")
	if err := os.Chmod(targetPath, 0444); err != nil {
		t.Fatalf("failed to chmod: %v", err)
	}
	router, _ := newTestRouter(t, dir, nil)

	w := doRequest(router, http.MethodPost, validBody)
	if body := decodeBody(t, w); w.Code != http.StatusOK || body["code"] != "ACCESS_DENIED" {
		t.Fatalf("expected ACCESS_DENIED, got %d %v", w.Code, body)
	}
	assertUntouched(t, dir, targetPath, "home")
}

func TestSourceIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, testPath, nil)
	req.RemoteAddr = "198.51.100.4:4000"
	if got := SourceIP(req); got != "198.51.100.4" {
		t.Fatalf("expected peer address, got %s", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	if got := SourceIP(req); got != "203.0.113.9" {
		t.Fatalf("expected forwarded address, got %s", got)
	}
}
