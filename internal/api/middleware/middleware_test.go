package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newEngine(allow []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), CORSMiddleware(allow))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString("trace_id")) })
	return r
}

func TestTraceMiddleware(t *testing.T) {
	r := newEngine(nil)
	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{"propagates client id", "abc-123", true},
		{"replaces empty", "", false},
		{"replaces quotes", `a"b`, false},
		{"replaces oversize", strings.Repeat("a", maxTraceIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.header != "" {
				req.Header.Set("X-Trace-ID", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get("X-Trace-ID")
			if tt.keep && got != tt.header {
				t.Fatalf("trace id = %q, want %q", got, tt.header)
			}
			if !tt.keep && (got == tt.header || got == "") {
				t.Fatalf("trace id = %q should be regenerated", got)
			}
		})
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := newEngine([]string{"https://app.example"})

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight = %d %q", w.Code, w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatal("foreign origin allowed")
	}

	if !OriginAllowed(nil, "https://anything") {
		t.Fatal("empty allow list should accept any origin")
	}
}
