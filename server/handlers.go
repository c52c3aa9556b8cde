package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/cache"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/engine"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/operation"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/pdf"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/progress"
)

// fileField is the multipart field name carrying the PDF.
const fileField = "file"

// legacyOutputName is the attachment name of the /upload text artifact.
const legacyOutputName = "extracted_text.txt"

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"status_code,omitempty"`
}

// OperationInfo describes one supported operation for /v1/operations.
type OperationInfo struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	ContentType   string `json:"content_type"`
	OutputExample string `json:"output_example"`
}

// handleProcess handles POST /v1/process?operation=<name> requests.
// The operation name is validated before the request body is touched.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	op, err := operation.Parse(r.URL.Query().Get("operation"))
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	input, filename, ok := s.readUpload(w, r, false)
	if !ok {
		return
	}

	jobID := uuid.NewString()
	log := s.logger.With("job_id", jobID, "operation", op.String(), "filename", filename)
	log.Info("process request", "input_bytes", len(input))

	// The attachment name always comes from this request's upload, not
	// from whichever filename first populated the cache entry.
	outputName := op.OutputName(filename)

	key := cache.Key(input, op.String())
	if entry := s.cachedEntry(r, key); entry != nil {
		log.Info("serving cached artifact", "key", key)
		s.sendArtifact(w, op, outputName, entry.Body, jobID, len(input), "hit")
		return
	}

	result, err := s.run(r, op, filename, input, log)
	if err != nil {
		log.Error("operation failed", "error", err)
		s.sendError(w, fmt.Sprintf("operation %s failed: %v", op, err), http.StatusInternalServerError)
		return
	}

	s.storeEntry(r, key, op, outputName, result.Output)

	log.Info("operation completed",
		"output_bytes", len(result.Output),
		"duration_ms", result.Duration.Milliseconds(),
	)

	s.sendArtifact(w, op, outputName, result.Output, jobID, len(input), "miss")
}

// handleLegacyUpload handles POST /upload, the original text extraction
// endpoint. It always runs extract and answers with extracted_text.txt.
func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	input, filename, ok := s.readUpload(w, r, true)
	if !ok {
		return
	}

	op := operation.Extract
	jobID := uuid.NewString()
	log := s.logger.With("job_id", jobID, "operation", op.String(), "filename", filename)

	key := cache.Key(input, op.String())
	if entry := s.cachedEntry(r, key); entry != nil {
		s.sendArtifact(w, op, legacyOutputName, entry.Body, jobID, len(input), "hit")
		return
	}

	result, err := s.run(r, op, filename, input, log)
	if err != nil {
		log.Error("extraction failed", "error", err)
		s.sendError(w, fmt.Sprintf("text extraction failed: %v", err), http.StatusInternalServerError)
		return
	}

	s.storeEntry(r, key, op, legacyOutputName, result.Output)
	s.sendArtifact(w, op, legacyOutputName, result.Output, jobID, len(input), "miss")
}

// handleOperations handles GET /v1/operations requests.
func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	ops := make([]OperationInfo, 0, len(operation.All()))
	for _, op := range operation.All() {
		ops = append(ops, OperationInfo{
			Name:          op.String(),
			Description:   op.Description(),
			ContentType:   op.ContentType(),
			OutputExample: op.OutputName("document.pdf"),
		})
	}
	s.sendJSON(w, map[string]any{"operations": ops}, http.StatusOK)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

// readUpload pulls the PDF out of the multipart body. On failure it has
// already written the error response and returns ok=false. The legacy
// endpoint keeps its original flat 400 for every body problem.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, legacy bool) (input []byte, filename string, ok bool) {
	limit := s.cfg.Server.GetMaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	file, header, err := r.FormFile(fileField)
	if err != nil {
		if !legacy && isBodyTooLarge(err) {
			s.sendError(w, fmt.Sprintf("uploaded file exceeds the %d byte limit", limit), http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		s.sendError(w, "No file uploaded", http.StatusBadRequest)
		return nil, "", false
	}
	defer file.Close()

	input, err = io.ReadAll(file)
	if err != nil {
		if !legacy && isBodyTooLarge(err) {
			s.sendError(w, fmt.Sprintf("uploaded file exceeds the %d byte limit", limit), http.StatusRequestEntityTooLarge)
			return nil, "", false
		}
		s.logger.Error("failed to read upload", "error", err)
		s.sendError(w, "failed to read uploaded file", http.StatusBadRequest)
		return nil, "", false
	}
	if len(input) == 0 {
		s.sendError(w, "uploaded file is empty", http.StatusBadRequest)
		return nil, "", false
	}
	if err := pdf.Validate(input); err != nil {
		s.sendError(w, fmt.Sprintf("invalid upload: %v", err), http.StatusBadRequest)
		return nil, "", false
	}

	return input, header.Filename, true
}

// isBodyTooLarge reports whether err came from http.MaxBytesReader. The
// multipart parser does not always wrap the underlying error, so the
// message is matched as a fallback.
func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	return strings.Contains(err.Error(), "request body too large")
}

// run drives one engine invocation, forwarding module status lines to
// the request log at debug level.
func (s *Server) run(r *http.Request, op operation.Operation, filename string, input []byte, log logger.Logger) (*engine.RunResult, error) {
	oc := s.cfg.OperationFor(op.String())
	tracker := progress.NewTracker(progress.Config{
		OnTick: func(tick progress.Tick) {
			log.Debug("progress",
				"label", tick.Label,
				"current", tick.Current,
				"total", tick.Total,
				"percent", tick.Percent(),
			)
		},
		OnStatus: func(line string) {
			log.Debug("module output", "line", line)
		},
	})

	return s.runner.Run(r.Context(), engine.RunRequest{
		Operation: op,
		InputName: filename,
		Input:     input,
		ArgOptions: operation.ArgOptions{
			PDFSettings:        oc.PDFSettings,
			CompatibilityLevel: oc.CompatibilityLevel,
			Extra:              oc.ExtraArgs,
		},
		Tracker: tracker,
	})
}

func (s *Server) cachedEntry(r *http.Request, key string) *cache.Entry {
	if s.store == nil {
		return nil
	}
	entry, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.logger.Warn("cache lookup failed", "key", key, "error", err)
		return nil
	}
	return entry
}

func (s *Server) storeEntry(r *http.Request, key string, op operation.Operation, filename string, body []byte) {
	if s.store == nil {
		return
	}
	entry := &cache.Entry{
		Key:       key,
		Operation: op.String(),
		Filename:  filename,
		Body:      body,
		StoredAt:  time.Now(),
		TTL:       s.cfg.Cache.TTL.Std(),
	}
	if err := s.store.Set(r.Context(), entry); err != nil {
		s.logger.Warn("cache store failed", "key", key, "error", err)
	}
}

// sendArtifact writes the finished artifact as a file attachment.
func (s *Server) sendArtifact(w http.ResponseWriter, op operation.Operation, filename string, body []byte, jobID string, inputSize int, cacheState string) {
	w.Header().Set("Content-Type", op.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Job-ID", jobID)
	w.Header().Set("X-Original-Size", strconv.Itoa(inputSize))
	w.Header().Set("X-Output-Size", strconv.Itoa(len(body)))
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Error("failed to write artifact", "error", err)
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	errResp := ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}
	s.sendJSON(w, errResp, statusCode)
}
