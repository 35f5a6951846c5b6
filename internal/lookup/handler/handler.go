// Package handler exposes the lookup service's HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/indexer/partition"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/internal/lookup/cache"
	apperrors "github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Inverted-Index-Pipeline/pkg/middleware"
)

// Source answers lookups from the partition files.
type Source interface {
	Lookup(word string) (index.WordEntry, error)
	Partition(letter byte) (*partition.Partition, error)
	ForgetAll()
}

var _ Source = (*lookup.Index)(nil)

// LookupResponse is the body of a successful word lookup.
type LookupResponse struct {
	Word      string `json:"word"`
	FileIDs   []int  `json:"file_ids"`
	FileCount int    `json:"file_count"`
	Cached    bool   `json:"cached"`
}

// PartitionResponse is the body of a partition dump.
type PartitionResponse struct {
	Letter  string            `json:"letter"`
	Words   int               `json:"words"`
	Entries []index.WordEntry `json:"entries"`
}

type Handler struct {
	source Source
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a Handler. queryCache may be nil, in which case every lookup
// reads the partitions.
func New(source Source, queryCache *cache.Cache) *Handler {
	return &Handler{
		source: source,
		cache:  queryCache,
		logger: slog.Default().With("component", "lookup-handler"),
	}
}

// Register installs the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/lookup", h.Lookup)
	mux.HandleFunc("GET /api/v1/partitions/{letter}", h.Partition)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Lookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := r.URL.Query().Get("word")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "query parameter 'word' is required")
		return
	}
	word, err := lookup.Normalize(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, cached, err := h.find(ctx, word)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status == http.StatusInternalServerError {
			logger.FromContext(ctx).Error("lookup failed",
				"word", word,
				"request_id", middleware.GetRequestID(ctx),
				"error", err,
			)
			h.writeError(w, status, "lookup failed")
			return
		}
		h.writeError(w, status, err.Error())
		return
	}

	h.logger.Debug("lookup served",
		"word", word,
		"file_count", entry.FileCount(),
		"cached", cached,
		"request_id", middleware.GetRequestID(ctx),
	)
	h.writeJSON(w, http.StatusOK, LookupResponse{
		Word:      entry.Word,
		FileIDs:   entry.FileIDs,
		FileCount: entry.FileCount(),
		Cached:    cached,
	})
}

func (h *Handler) find(ctx context.Context, word string) (index.WordEntry, bool, error) {
	load := func() (index.WordEntry, error) { return h.source.Lookup(word) }
	if h.cache == nil {
		entry, err := load()
		return entry, false, err
	}
	return h.cache.GetOrLoad(ctx, word, load)
}

func (h *Handler) Partition(w http.ResponseWriter, r *http.Request) {
	letter := r.PathValue("letter")
	if len(letter) != 1 {
		h.writeError(w, http.StatusBadRequest, "letter must be a single character a-z")
		return
	}
	p, err := h.source.Partition(letter[0])
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, partition.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "no partition for letter "+letter)
		return
	case err != nil:
		h.logger.Error("loading partition failed", "letter", letter, "error", err)
		h.writeError(w, http.StatusInternalServerError, "loading partition failed")
		return
	}
	h.writeJSON(w, http.StatusOK, PartitionResponse{
		Letter:  letter,
		Words:   p.Len(),
		Entries: p.Entries(),
	})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	h.writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	h.source.ForgetAll()
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": 0})
		return
	}
	deleted, err := h.cache.InvalidateAll(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "keys_deleted": deleted})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
