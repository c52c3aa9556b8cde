package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
)

// TestNewRequiresEndpoint verifies an unconfigured endpoint is rejected.
func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(config.UploadConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

// TestNewRejectsBadEndpoint verifies endpoint validation happens before
// any upload.
func TestNewRejectsBadEndpoint(t *testing.T) {
	tests := []string{
		"ftp://example.com/upload",
		"not-a-url",
		"https://",
	}

	for _, endpoint := range tests {
		_, err := New(config.UploadConfig{Endpoint: endpoint})
		assert.Error(t, err, "should reject: %s", endpoint)
	}
}

// TestUpload verifies the multipart request shape and that the
// response body is treated as the finished artifact.
func TestUpload(t *testing.T) {
	artifact := []byte("%PDF-1.4 processed")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.Header.Get("Content-Type"), "multipart/form-data")
		assert.Equal(t, config.DefaultUserAgent, r.Header.Get("User-Agent"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err, "file field must be present")
		defer file.Close()

		assert.Equal(t, "report.pdf", header.Filename)

		uploaded, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, []byte("%PDF-1.4 original"), uploaded)

		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="report-compressed.pdf"`)
		w.Write(artifact)
	}))
	defer srv.Close()

	u, err := New(config.UploadConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := u.Upload(context.Background(), "report.pdf", []byte("%PDF-1.4 original"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, artifact, resp.Body)
	assert.Equal(t, "application/pdf", resp.ContentType)
	assert.Equal(t, "report-compressed.pdf", resp.Filename)
}

// TestUploadRemoteError verifies non-2xx responses surface as errors
// while keeping the response for retry classification.
func TestUploadRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "No file uploaded"}`))
	}))
	defer srv.Close()

	u, err := New(config.UploadConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := u.Upload(context.Background(), "report.pdf", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 400")
	assert.Contains(t, err.Error(), "No file uploaded")
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "3", resp.Headers.Get("Retry-After"))
}

// TestUploadNetworkError verifies a failed fetch surfaces as a plain
// error with no response.
func TestUploadNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately, so the connection is refused

	u, err := New(config.UploadConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	resp, err := u.Upload(context.Background(), "report.pdf", []byte("x"))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "upload failed")
}

// TestDispositionFilename verifies Content-Disposition parsing.
func TestDispositionFilename(t *testing.T) {
	assert.Equal(t, "out.pdf", dispositionFilename(`attachment; filename="out.pdf"`))
	assert.Equal(t, "out.pdf", dispositionFilename(`attachment; filename=out.pdf`))
	assert.Equal(t, "", dispositionFilename("attachment"))
	assert.Equal(t, "", dispositionFilename(""))
	assert.Equal(t, "", dispositionFilename("not a header ;;;"))
}
