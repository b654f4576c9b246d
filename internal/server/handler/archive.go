package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alanyoungcy/truthpool/internal/domain"
)

// Archiver writes settlement and evidence reports to object storage.
type Archiver interface {
	ArchiveSettlement(ctx context.Context, marketID uint64) (string, error)
	ArchiveEvidence(ctx context.Context, submissionID uint64) (string, error)
}

// ArchiveHandler lists, fetches and triggers archived reports.
type ArchiveHandler struct {
	archiver Archiver
	blobs    domain.BlobReader
	logger   *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler.
func NewArchiveHandler(archiver Archiver, blobs domain.BlobReader, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{archiver: archiver, blobs: blobs, logger: logger}
}

// ArchiveMarket writes the settlement report for a resolved market.
// POST /api/markets/{id}/archive
func (h *ArchiveHandler) ArchiveMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	path, err := h.archiver.ArchiveSettlement(r.Context(), id)
	writeResult(w, r, h.logger, path, err, false)
}

// ArchiveSubmission writes the evidence bundle for a revealed submission.
// POST /api/submissions/{id}/archive
func (h *ArchiveHandler) ArchiveSubmission(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, false)
		return
	}
	path, err := h.archiver.ArchiveEvidence(r.Context(), id)
	writeResult(w, r, h.logger, path, err, false)
}

// List returns archived objects under ?prefix=.
// GET /api/archive
func (h *ArchiveHandler) List(w http.ResponseWriter, r *http.Request) {
	infos, err := h.blobs.List(r.Context(), r.URL.Query().Get("prefix"))
	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeResult(w, r, h.logger, infos, err, false)
}

// Get streams one archived object.
// GET /api/archive/{path...}
func (h *ArchiveHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := r.PathValue("path")
	if path == "" || strings.Contains(path, "..") {
		writeError(w, r, domain.ErrInvalidInput, false)
		return
	}
	exists, err := h.blobs.Exists(r.Context(), path)
	if err == nil && !exists {
		err = domain.ErrNotFound
	}
	if err != nil {
		writeResult(w, r, h.logger, "", err, false)
		return
	}

	rc, err := h.blobs.Get(r.Context(), path)
	if err != nil {
		writeResult(w, r, h.logger, "", err, false)
		return
	}
	defer rc.Close()

	if strings.HasSuffix(path, ".jsonl") {
		w.Header().Set("Content-Type", "application/x-ndjson")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}
