package main

import (
	"io"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/edu-admin/internal/config"
	"github.com/example/edu-admin/internal/handlers"
)

type runningServer struct {
	addr    string
	signals chan os.Signal
	done    chan error
}

func startServer(t *testing.T, handler http.Handler, shutdownTimeout time.Duration) *runningServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &runningServer{
		addr:    listener.Addr().String(),
		signals: make(chan os.Signal, 1),
		done:    make(chan error, 1),
	}
	server := &http.Server{Handler: handler}
	go func() {
		srv.done <- serveHTTPServerWithOptions(server, shutdownTimeout, zap.NewNop(), listener, srv.signals)
	}()
	waitForServer(t, srv.addr)
	return srv
}

func (s *runningServer) url(path string) string { return "http://" + s.addr + path }

func (s *runningServer) stop(t *testing.T) {
	t.Helper()
	s.signals <- syscall.SIGTERM
	s.waitExit(t)
}

func (s *runningServer) waitExit(t *testing.T) {
	t.Helper()
	select {
	case err := <-s.done:
		if err != nil {
			t.Fatalf("server did not shut down cleanly: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}
}

func TestShutdownWaitsForInFlightUpload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	entered := make(chan struct{})
	release := make(chan struct{})
	var released bool
	t.Cleanup(func() {
		if !released {
			close(release)
		}
	})

	r := gin.New()
	r.POST("/api/upload-face", func(c *gin.Context) {
		close(entered)
		<-release
		c.JSON(http.StatusCreated, gin.H{"message": "Face uploaded"})
	})
	srv := startServer(t, r, 2*time.Second)

	type result struct {
		status int
		body   string
		err    error
	}
	results := make(chan result, 1)
	go func() {
		resp, err := (&http.Client{Timeout: 2 * time.Second}).Post(srv.url("/api/upload-face"), "application/octet-stream", nil)
		if err != nil {
			results <- result{err: err}
			return
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		results <- result{status: resp.StatusCode, body: string(body)}
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("upload never reached the handler")
	}

	srv.signals <- syscall.SIGINT
	time.Sleep(50 * time.Millisecond)
	released = true
	close(release)

	select {
	case res := <-results:
		if res.err != nil {
			t.Fatalf("in-flight upload failed: %v", res.err)
		}
		if res.status != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", res.status, res.body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight upload did not complete")
	}
	srv.waitExit(t)
}

func TestRouterServesHealthThroughMiddleware(t *testing.T) {
	cfg := &config.AppConfig{
		HTTP:     config.HTTPConfig{CORSOrigins: []string{"http://localhost:5173"}},
		Security: config.SecurityConfig{JWTSecret: "test-secret"},
	}
	router := newRouter(cfg, handlers.Services{Logger: zap.NewNop()}, zap.NewNop())
	srv := startServer(t, router, time.Second)
	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(srv.url("/health"))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Fatal("expected request id header")
	}

	resp, err = client.Get(srv.url("/api/face-metrics"))
	if err != nil {
		t.Fatalf("metrics request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	srv.stop(t)
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
