package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/reliefhq/relief/internal/log"
)

// maxUploadBytes bounds one multipart upload request.
const maxUploadBytes = 64 << 20 // 64 MiB

// IngestHandler handles file upload and path-based ingestion.
type IngestHandler struct {
	ingestor  Ingestor
	uploadDir string
	logger    log.Logger
}

// NewIngestHandler creates an ingest handler.
func NewIngestHandler(ingestor Ingestor, uploadDir string, logger log.Logger) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, uploadDir: uploadDir, logger: logger}
}

// RegisterRoutes registers ingestion routes on the given mux.
func (h *IngestHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/upload", h.upload)
	mux.HandleFunc("POST /api/v1/ingest", h.ingestPaths)
}

// UploadResponse mirrors the public upload schema.
type UploadResponse struct {
	Success  bool   `json:"success"`
	NumFiles int    `json:"num_files"`
	Message  string `json:"message"`
}

// upload saves the multipart files under the upload directory and ingests
// them.
func (h *IngestHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form", h.logger)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "no files provided", h.logger)
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o750); err != nil {
		h.logger.Error("creating upload directory", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "saving uploads failed", h.logger)
		return
	}

	var paths []string
	for _, fh := range files {
		// Base strips any directory components a client smuggles into
		// the filename.
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid filename", h.logger)
			return
		}
		dst := filepath.Join(h.uploadDir, name)
		if err := saveUpload(fh, dst); err != nil {
			h.logger.Error("saving upload", "file", name, "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "saving uploads failed", h.logger)
			return
		}
		paths = append(paths, dst)
	}

	chunks, processed := h.ingestor.IngestPaths(r.Context(), paths)
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		NumFiles: len(processed),
		Message:  fmt.Sprintf("Indexed %d chunks from %d files", chunks, len(processed)),
	}, h.logger)
}

func saveUpload(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// IngestRequest names server-local text files to index.
type IngestRequest struct {
	Paths []string `json:"paths"`
}

// ingestPaths ingests files already on the server's filesystem.
func (h *IngestHandler) ingestPaths(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid JSON body", h.logger)
		return
	}
	if len(req.Paths) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", "paths is required", h.logger)
		return
	}

	chunks, processed := h.ingestor.IngestPaths(r.Context(), req.Paths)
	writeJSON(w, http.StatusOK, UploadResponse{
		Success:  true,
		NumFiles: len(processed),
		Message:  fmt.Sprintf("Indexed %d chunks from %d files", chunks, len(processed)),
	}, h.logger)
}
