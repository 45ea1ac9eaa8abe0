// Package api provides REST API endpoints for recovered keys.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zipcrack/internal/storage"
)

// KeysStore is the slice of the Postgres store the API needs. It exists
// so tests can substitute an in-memory implementation.
type KeysStore interface {
	GetKeys(ctx context.Context, archiveSHA256, member string, offset int) (*storage.RecoveredKeys, error)
	GetArchiveKeys(ctx context.Context, archiveSHA256 string) ([]storage.RecoveredKeys, error)
}

// KeysServer provides REST API access to recovered keys.
type KeysServer struct {
	store       KeysStore
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the keys API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewKeysServer creates a new keys API server.
func NewKeysServer(store KeysStore, cfg Config) *KeysServer {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}

	return &KeysServer{
		store:       store,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Run starts the HTTP server.
func (s *KeysServer) Run() error {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(corsMiddleware)

	r.Mount("/api/v1", s.Router())

	addr := ":" + strconv.Itoa(s.port)
	log.Printf("Keys API starting at http://localhost%s", addr)
	if s.authEnabled {
		log.Printf("Authentication: ENABLED (API key required)")
	} else {
		log.Printf("Authentication: DISABLED (open access)")
	}

	return http.ListenAndServe(addr, r)
}

// Router returns the configured chi router for embedding in other
// servers and for tests.
func (s *KeysServer) Router() chi.Router {
	r := chi.NewRouter()

	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/keys/{archive_sha256}", s.handleGetArchiveKeys)
	r.Get("/keys/{archive_sha256}/{member}", s.handleGetKeys)

	return r
}

// corsMiddleware adds CORS headers for browser access.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware validates API key authentication.
func (s *KeysServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays open so load balancers can probe.
		if strings.HasSuffix(r.URL.Path, "/health") {
			next.ServeHTTP(w, r)
			return
		}

		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to ?api_key= query parameter.
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// KeysResponse is the JSON shape of one recovered state.
type KeysResponse struct {
	ArchiveSHA256 string `json:"archive_sha256"`
	Member        string `json:"member"`
	Offset        int    `json:"offset"`
	X             string `json:"x"`
	Y             string `json:"y"`
	Z             string `json:"z"`
	FoundAt       string `json:"found_at"`
}

func keysToResponse(rk *storage.RecoveredKeys) KeysResponse {
	return KeysResponse{
		ArchiveSHA256: rk.ArchiveSHA256,
		Member:        rk.Member,
		Offset:        rk.Offset,
		X:             strconv.FormatUint(uint64(rk.X), 16),
		Y:             strconv.FormatUint(uint64(rk.Y), 16),
		Z:             strconv.FormatUint(uint64(rk.Z), 16),
		FoundAt:       rk.FoundAt.UTC().Format(time.RFC3339),
	}
}

func (s *KeysServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *KeysServer) handleGetArchiveKeys(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(chi.URLParam(r, "archive_sha256"))
	if hash == "" {
		writeError(w, http.StatusBadRequest, "archive_sha256 is required")
		return
	}

	all, err := s.store.GetArchiveKeys(r.Context(), hash)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(all) == 0 {
		writeError(w, http.StatusNotFound, "no keys recovered for archive")
		return
	}

	results := make([]KeysResponse, 0, len(all))
	for i := range all {
		results = append(results, keysToResponse(&all[i]))
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *KeysServer) handleGetKeys(w http.ResponseWriter, r *http.Request) {
	hash := strings.ToLower(chi.URLParam(r, "archive_sha256"))
	member := chi.URLParam(r, "member")
	if hash == "" || member == "" {
		writeError(w, http.StatusBadRequest, "archive_sha256 and member are required")
		return
	}

	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "offset must be an integer")
			return
		}
		offset = n
	}

	rk, err := s.store.GetKeys(r.Context(), hash, member, offset)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no keys recovered for member")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, keysToResponse(rk))
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
