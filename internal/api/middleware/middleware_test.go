package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/maintenance-gate/internal/config"
	"github.com/yourusername/maintenance-gate/internal/database"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestIsOriginAllowed(t *testing.T) {
	allowed := []string{"https://example.com", " "}

	if !isOriginAllowed("https://example.com", allowed) {
		t.Fatalf("expected origin to be allowed")
	}
	if isOriginAllowed("https://anything.local", allowed) {
		t.Fatalf("did not expect unlisted origin to be allowed")
	}
	if !isOriginAllowed("https://anything.local", []string{"*"}) {
		t.Fatalf("expected wildcard allowlist to permit origin")
	}
}

func TestContainsWildcard(t *testing.T) {
	if !containsWildcard([]string{" * "}) {
		t.Fatalf("expected wildcard to be detected")
	}
	if containsWildcard([]string{"https://example.com"}) {
		t.Fatalf("did not expect wildcard to be detected")
	}
}

func TestCORSHeadersAndPreflightPassThrough(t *testing.T) {
	router := gin.New()
	router.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"*"}}))
	reached := false
	router.Any("/m", func(c *gin.Context) {
		reached = true
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodOptions, "/m", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if !reached {
		t.Fatalf("expected preflight to reach the handler")
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("expected wildcard origin, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != "POST, OPTIONS" {
		t.Fatalf("unexpected methods %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, X-System-Token" {
		t.Fatalf("unexpected headers %q", got)
	}
}

func TestCORSEchoesListedOrigin(t *testing.T) {
	router := gin.New()
	router.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://ui.example.com"}}))
	router.POST("/m", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/m", nil)
	req.Header.Set("Origin", "https://ui.example.com")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://ui.example.com" {
		t.Fatalf("expected listed origin echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/m", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no allow-origin for unlisted origin, got %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := newRateLimiter(true, 2)
	key := "127.0.0.1"

	if !limiter.allow(key) {
		t.Fatalf("expected first request to be allowed")
	}
	if !limiter.allow(key) {
		t.Fatalf("expected second request to be allowed")
	}
	if limiter.allow(key) {
		t.Fatalf("expected third request to be rate limited")
	}

	limiter.entries[key].windowStart = time.Now().Add(-limiter.window)
	if !limiter.allow(key) {
		t.Fatalf("expected request to be allowed after window reset")
	}
}

func TestRateLimitRespondsWithErrorBody(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(true, 1))
	router.POST("/m", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/m", nil))
		if w.Code != want {
			t.Fatalf("request %d: expected %d, got %d", i, want, w.Code)
		}
		if want == http.StatusTooManyRequests && w.Body.String() != `{"code":"RATE_LIMITED","message":"Too many requests.","status":"error"}` {
			t.Fatalf("unexpected body %s", w.Body.String())
		}
	}
}

func TestRateLimitSkipsPreflight(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(true, 1))
	router.Any("/m", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/m", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("preflight %d: expected 200, got %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/m", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected preflights not to use up the limit, got %d", w.Code)
	}
}

func TestLoggerKeepsHandlerResponse(t *testing.T) {
	router := gin.New()
	router.Use(Logger())
	router.POST("/m", func(c *gin.Context) {
		c.Header("X-Handler", "yes")
		c.JSON(http.StatusForbidden, gin.H{"status": "error"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/m", nil))
	if w.Code != http.StatusForbidden || w.Header().Get("X-Handler") != "yes" {
		t.Fatalf("expected handler response untouched, got %d %v", w.Code, w.Header())
	}
	if w.Header().Get("X-Response-Time") != "" {
		t.Fatalf("did not expect headers added after the body was written")
	}
}

func TestSecurityHeaders(t *testing.T) {
	router := gin.New()
	router.Use(SecurityHeaders(false))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected nosniff header")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("did not expect HSTS without TLS")
	}
}

func TestAuditStoresRequests(t *testing.T) {
	db, err := database.NewDB(filepath.Join(t.TempDir(), "audit.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	router := gin.New()
	router.Use(Audit(db.DB))
	router.POST("/m", func(c *gin.Context) { c.Status(http.StatusForbidden) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/m", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var count, status int
	if err := db.QueryRow(`SELECT COUNT(*), MAX(status) FROM http_audit`).Scan(&count, &status); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != 1 || status != http.StatusForbidden {
		t.Fatalf("expected one audited 403, got count=%d status=%d", count, status)
	}
}

func TestAuditWithoutDatabase(t *testing.T) {
	router := gin.New()
	router.Use(Audit((*sql.DB)(nil)))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected request to pass through, got %d", w.Code)
	}
}
