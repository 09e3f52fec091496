package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

func testConfig() Config {
	config := DefaultConfig()
	config.Addr = "127.0.0.1:0" // Use random port
	return config
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Addr != "127.0.0.1:18765" {
		t.Errorf("Expected addr 127.0.0.1:18765, got %s", config.Addr)
	}

	if config.ReadTimeout != 10*time.Second {
		t.Errorf("Expected ReadTimeout 10s, got %v", config.ReadTimeout)
	}

	if config.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected ShutdownTimeout 5s, got %v", config.ShutdownTimeout)
	}
}

func TestStartStop(t *testing.T) {
	server := New(testConfig(), logger.Nop())

	if server.IsRunning() {
		t.Error("Expected server to not be running initially")
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}

	if !server.IsRunning() {
		t.Error("Expected server to be running")
	}

	if strings.HasSuffix(server.Addr(), ":0") {
		t.Errorf("Expected assigned port, got %s", server.Addr())
	}

	// Try to start again (should fail)
	if err := server.Start(); err == nil {
		t.Error("Expected error when starting already running server")
	}

	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("Failed to stop server: %v", err)
	}

	if server.IsRunning() {
		t.Error("Expected server to be stopped")
	}

	// Stopping twice is a no-op
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("Expected no error on second stop, got %v", err)
	}
}

func TestHealthzAndHandlers(t *testing.T) {
	server := New(testConfig(), logger.Nop())
	server.Handle("/api/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop(context.Background())

	tests := []struct {
		path string
		want string
	}{
		{"/healthz", "ok\n"},
		{"/api/ping", "pong"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL() + tt.path)
			if err != nil {
				t.Fatalf("Failed to request %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Errorf("Expected status 200, got %d", resp.StatusCode)
			}
			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.want {
				t.Errorf("Expected body %q, got %q", tt.want, string(body))
			}
		})
	}
}

func TestLocalOnly(t *testing.T) {
	handler := localOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantCORS   bool
	}{
		{"no origin", http.MethodGet, "", http.StatusOK, false},
		{"localhost origin", http.MethodGet, "http://localhost:3000", http.StatusOK, true},
		{"loopback origin", http.MethodGet, "http://127.0.0.1:18765", http.StatusOK, true},
		{"foreign origin", http.MethodGet, "http://example.com", http.StatusForbidden, false},
		{"preflight", http.MethodOptions, "http://localhost", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/healthz", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			hasCORS := w.Header().Get("Access-Control-Allow-Origin") != ""
			if hasCORS != tt.wantCORS {
				t.Errorf("Expected CORS header %v, got %v", tt.wantCORS, hasCORS)
			}
		})
	}
}

func TestIsLoopback(t *testing.T) {
	tests := map[string]bool{
		"127.0.0.1:9090": true,
		"localhost:9090": true,
		"[::1]:9090":     true,
		"0.0.0.0:9090":   false,
		":9090":          false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopback(addr); got != want {
			t.Errorf("isLoopback(%q): expected %v, got %v", addr, want, got)
		}
	}
}
