// Package handler serves the HTTP surface of the compression service.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/imgfit/imgfit/internal/engine"
	"github.com/imgfit/imgfit/internal/middleware"
	"github.com/imgfit/imgfit/pkg/compress"
	"github.com/imgfit/imgfit/pkg/imgio"
)

const maxMemory = 32 << 20 // 32MB max in-memory for multipart parsing

// Handler handles HTTP requests for image compression
type Handler struct {
	engine      *engine.Engine
	log         *logrus.Logger
	maxUploadMB int
}

// New creates a new Handler around eng.
func New(eng *engine.Engine, log *logrus.Logger, maxUploadMB int) *Handler {
	return &Handler{
		engine:      eng,
		log:         log,
		maxUploadMB: maxUploadMB,
	}
}

// compressResponse is the JSON shape returned for format=json.
type compressResponse struct {
	Data string `json:"data"` // data URI with base64 payload
	Type string `json:"type"`
	Size int    `json:"size"`
	Name string `json:"name"`
}

// Compress handles POST /compress. The image arrives as the multipart
// field "file"; query parameters: max_size (budget in bytes, default from
// config) and format (binary, the default, or json for a data URI).
func (h *Handler) Compress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxUploadMB)<<20)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "Content-Type must be multipart/form-data")
			return
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading upload failed")
		return
	}
	if err := imgio.ValidateBytes(data); err != nil {
		if errors.Is(err, imgio.ErrInputTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file exceeds size limit")
		} else {
			writeError(w, http.StatusBadRequest, "empty upload")
		}
		return
	}

	maxSize := 0 // zero means the engine default
	if s := r.URL.Query().Get("max_size"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "max_size must be a positive integer")
			return
		}
		maxSize = n
	}

	result, err := h.engine.Compress(r.Context(), data, header.Filename, maxSize)
	if err != nil {
		h.writeCompressError(w, r, err)
		return
	}

	h.writeResult(w, r, result)
}

// writeCompressError maps pipeline failures onto HTTP statuses.
func (h *Handler) writeCompressError(w http.ResponseWriter, r *http.Request, err error) {
	fields := logrus.Fields{
		"request_id": middleware.GetRequestID(r.Context()),
	}

	switch {
	case errors.Is(err, compress.ErrUnsupported):
		h.log.WithFields(fields).WithError(err).Info("rejected non-compressible upload")
		writeError(w, http.StatusUnsupportedMediaType, "media type cannot be compressed")
	case errors.Is(err, compress.ErrExhausted):
		h.log.WithFields(fields).WithError(err).Info("budget unreachable")
		writeError(w, http.StatusUnprocessableEntity, "image cannot be compressed to the requested size")
	case errors.Is(err, compress.ErrDecode):
		writeError(w, http.StatusBadRequest, "file is not a decodable image")
	case errors.Is(err, engine.ErrPoolBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "server busy, please try again")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// Client went away; nothing useful left to write.
	default:
		h.log.WithFields(fields).WithError(err).Error("compression failed")
		writeError(w, http.StatusInternalServerError, "compression failed")
	}
}

// writeResult sends the encoded image, raw by default or as a JSON data
// URI when format=json.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, result compress.EncodedResult) {
	if r.URL.Query().Get("format") == "json" {
		resp := compressResponse{
			Data: fmt.Sprintf("data:%s;base64,%s", result.Type, base64.StdEncoding.EncodeToString(result.Data)),
			Type: result.Type,
			Size: result.Size(),
			Name: result.Name,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(resp)
		return
	}

	w.Header().Set("Content-Type", result.Type)
	w.Header().Set("Content-Length", strconv.Itoa(result.Size()))
	w.WriteHeader(http.StatusOK)
	w.Write(result.Data)
}

// Health handles the /health endpoint for readiness/liveness probes
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
