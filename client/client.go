// Package client implements the remote upload variant: the PDF is
// posted to a remote processing endpoint and the response body is the
// finished artifact. This is a different trust and deployment boundary
// from the in-process engine.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
)

// fileField is the multipart form field the remote endpoint reads.
const fileField = "file"

// maxErrorBodyBytes bounds how much of an error response is quoted.
const maxErrorBodyBytes = 512

// Response is the artifact returned by the remote endpoint.
type Response struct {
	StatusCode  int
	ContentType string
	// Filename from the Content-Disposition header, if the endpoint
	// set one.
	Filename string
	Headers  http.Header
	Body     []byte
}

// Uploader posts PDFs to a remote processing endpoint.
type Uploader struct {
	endpoint  string
	userAgent string
	client    *http.Client
	logger    logger.Logger
}

// New creates an Uploader for the configured endpoint.
func New(cfg config.UploadConfig) (*Uploader, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("upload endpoint is not configured")
	}
	if err := config.ValidateEndpoint(cfg.Endpoint); err != nil {
		return nil, err
	}

	return &Uploader{
		endpoint:  cfg.Endpoint,
		userAgent: cfg.GetUserAgent(),
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
		logger: logger.Noop(),
	}, nil
}

// WithLogger sets the logger for the uploader.
func (u *Uploader) WithLogger(log logger.Logger) *Uploader {
	u.logger = log
	return u
}

// Endpoint returns the configured endpoint URL.
func (u *Uploader) Endpoint() string {
	return u.endpoint
}

// Upload posts the file and returns the response body as the artifact.
// Non-2xx responses are returned as both a Response (for retry
// classification) and an error.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (*Response, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile(fileField, filename)
	if err != nil {
		return nil, fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write file part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("User-Agent", u.userAgent)

	u.logger.Debug("uploading file", "endpoint", u.endpoint, "filename", filename, "bytes", len(data))

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	result := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		Headers:     resp.Header,
		Body:        respBody,
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := respBody
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return result, fmt.Errorf("remote endpoint returned HTTP %d: %s", resp.StatusCode, snippet)
	}

	u.logger.Debug("upload completed", "status", resp.StatusCode, "bytes", len(respBody))

	return result, nil
}

// dispositionFilename extracts the filename parameter from a
// Content-Disposition header, or returns "".
func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return params["filename"]
}
