package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/user/movierec/internal/apperr"
	"github.com/user/movierec/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
	logging.SetLogger(zerolog.Nop())
}

func serve(r *gin.Engine, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = GetRequestID(c)
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/", nil)
	if seen == "" || w.Header().Get(RequestIDHeader) != seen {
		t.Errorf("generated id %q, header %q", seen, w.Header().Get(RequestIDHeader))
	}

	w = serve(r, http.MethodGet, "/", http.Header{RequestIDHeader: {"abc-123"}})
	if seen != "abc-123" || w.Header().Get(RequestIDHeader) != "abc-123" {
		t.Errorf("upstream id not reused: %q", seen)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(0.001, 3)
	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("request allowed past burst")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("other client shares the bucket")
	}

	rl.idle = -time.Second
	rl.Cleanup()
	if len(rl.limiters) != 0 {
		t.Errorf("%d limiters left after cleanup", len(rl.limiters))
	}
	if !rl.Allow("1.2.3.4") {
		t.Error("fresh bucket denied after cleanup")
	}
}

func TestErrorHandler(t *testing.T) {
	r := gin.New()
	r.Use(ErrorHandler())
	r.GET("/validation", func(c *gin.Context) { c.Error(apperr.Validation("Invalid Movie ID format")) })
	r.GET("/upstream", func(c *gin.Context) { c.Error(apperr.Upstream("get", errors.New("secret dsn"))) })
	r.GET("/wrapped", func(c *gin.Context) { c.Error(fmt.Errorf("bind query: %w", apperr.Validation("Invalid limit format"))) })
	r.GET("/written", func(c *gin.Context) {
		c.String(http.StatusTeapot, "done")
		c.Error(errors.New("late"))
	})

	tests := []struct {
		path       string
		wantStatus int
		wantMsg    string
	}{
		{"/validation", 400, "Invalid Movie ID format"},
		{"/upstream", 500, "Internal Server Error"},
		{"/wrapped", 400, "Invalid limit format"},
	}
	for _, tt := range tests {
		w := serve(r, http.MethodGet, tt.path, nil)
		var body map[string]any
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("GET %s: %v", tt.path, err)
		}
		if w.Code != tt.wantStatus || body["message"] != tt.wantMsg || body["success"] != false {
			t.Errorf("GET %s = %d %v", tt.path, w.Code, body)
		}
		if _, ok := body["data"]; ok {
			t.Errorf("GET %s: error envelope has data", tt.path)
		}
	}

	if w := serve(r, http.MethodGet, "/written", nil); w.Code != http.StatusTeapot || w.Body.String() != "done" {
		t.Errorf("written response replaced: %d %q", w.Code, w.Body.String())
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/panic", nil)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:5173/"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodGet, "/", http.Header{"Origin": {"http://localhost:5173"}})
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:5173" {
		t.Errorf("allowed origin not echoed: %v", w.Header())
	}
	w = serve(r, http.MethodGet, "/", http.Header{"Origin": {"http://evil.test"}})
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unknown origin allowed")
	}
	w = serve(r, http.MethodOptions, "/", http.Header{"Origin": {"http://localhost:5173"}})
	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}

	wildcard := gin.New()
	wildcard.Use(CORS([]string{"*"}))
	wildcard.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = serve(wildcard, http.MethodGet, "/", http.Header{"Origin": {"http://anywhere.test"}})
	if w.Header().Get("Access-Control-Allow-Origin") != "http://anywhere.test" {
		t.Error("wildcard did not allow origin")
	}
}
