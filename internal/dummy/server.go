package dummy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"stampede/internal/output"
)

type ServerConfig struct {
	Port int
}

type TestRequest struct {
	Input string `json:"input"`
}

type TestResponse struct {
	Message string `json:"message"`
}

// NewRouter builds the target endpoints.
func NewRouter() *mux.Router {
	r := mux.NewRouter()

	// Echo endpoint, uppercases the input
	r.HandleFunc("/test", handleTest).Methods(http.MethodPost)

	// Fast Endpoint (10-50ms)
	r.HandleFunc("/fast", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(40)+10) * time.Millisecond
		time.Sleep(jitter)
		writeJSON(w, http.StatusOK, TestResponse{Message: "fast"})
	}).Methods(http.MethodGet)

	// Slow Endpoint (1s-2s), good for testing timeouts
	r.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		jitter := time.Duration(rand.Intn(1000)+1000) * time.Millisecond
		select {
		case <-time.After(jitter):
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, TestResponse{Message: "slow"})
	}).Methods(http.MethodGet)

	// Error Endpoint (random failures)
	r.HandleFunc("/error", func(w http.ResponseWriter, r *http.Request) {
		rnd := rand.Float32()
		if rnd < 0.2 {
			writeJSON(w, http.StatusInternalServerError, TestResponse{Message: "internal server error"})
		} else if rnd < 0.4 {
			writeJSON(w, http.StatusTooManyRequests, TestResponse{Message: "too many requests"})
		} else {
			writeJSON(w, http.StatusOK, TestResponse{Message: "ok"})
		}
	}).Methods(http.MethodGet)

	// Fixed status, for exercising every classification
	r.HandleFunc("/status/{code:[0-9]{3}}", func(w http.ResponseWriter, r *http.Request) {
		code, _ := strconv.Atoi(mux.Vars(r)["code"])
		if code == http.StatusNoContent {
			w.WriteHeader(code)
			return
		}
		writeJSON(w, code, TestResponse{Message: http.StatusText(code)})
	}).Methods(http.MethodGet, http.MethodPost)

	r.Use(loggingMiddleware)
	return r
}

func handleTest(w http.ResponseWriter, r *http.Request) {
	var req TestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, TestResponse{Message: fmt.Sprintf("invalid request: %v", err)})
		return
	}
	writeJSON(w, http.StatusOK, TestResponse{Message: strings.ToUpper(req.Input)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		output.Logger.Debug("Request served",
			"method", r.Method,
			"path", r.URL.Path,
			"activity_id", r.URL.Query().Get("activityId"),
			"duration", time.Since(start),
		)
	})
}

// Start listens on cfg.Port and serves in the background. The returned
// server is shut down by the caller.
func Start(cfg ServerConfig) (*http.Server, net.Addr, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return nil, nil, fmt.Errorf("listen on port %d: %w", cfg.Port, err)
	}

	server := &http.Server{
		Handler:           NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			output.Logger.Error("Server failed", "error", err)
		}
	}()

	return server, ln.Addr(), nil
}

// RunHeartbeat logs a line every interval until ctx is done.
func RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			output.Logger.Info("Worker running", "time", t.Format(time.RFC3339))
		}
	}
}
