package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/imgharvest/internal/config"
	"github.com/IshaanNene/imgharvest/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	cfg := config.DefaultConfig()
	f, err := NewHTTPFetcher(&cfg.Fetcher, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestFetchPageSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte("<html><body>ok</body></html>"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	resp, err := f.FetchPage(context.Background(), srv.URL, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(resp.Body), "ok")
	assert.Equal(t, config.DefaultConfig().Fetcher.UserAgent, gotUA)
}

func TestFetchPageDecompresses(t *testing.T) {
	const page = "<html><body>compressed</body></html>"

	tests := []struct {
		encoding string
		encode   func(io.Writer) io.WriteCloser
	}{
		{"gzip", func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) }},
		{"br", func(w io.Writer) io.WriteCloser { return brotli.NewWriter(w) }},
	}

	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			var buf bytes.Buffer
			w := tt.encode(&buf)
			_, _ = w.Write([]byte(page))
			require.NoError(t, w.Close())

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Encoding", tt.encoding)
				w.Write(buf.Bytes())
			}))
			defer srv.Close()

			resp, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL, 5*time.Second)
			require.NoError(t, err)
			assert.Equal(t, page, string(resp.Body))
		})
	}
}

func TestFetchPageBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL, 5*time.Second)
	require.Error(t, err)

	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.StatusCode)
	assert.ErrorIs(t, err, types.ErrBadStatus)
}

func TestFetchPageBodyLimitAppliesToDecodedBody(t *testing.T) {
	page := bytes.Repeat([]byte("a"), 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := page
		if r.URL.Path == "/exact" {
			body = page[:1000]
		}
		w.Header().Set("Content-Encoding", "gzip")
		zw := gzip.NewWriter(w)
		zw.Write(body)
		zw.Close()
	}))
	defer srv.Close()

	cfg := config.DefaultConfig()
	cfg.Fetcher.MaxBodySize = 1000
	f, err := NewHTTPFetcher(&cfg.Fetcher, testLogger)
	require.NoError(t, err)
	defer f.Close()

	_, err = f.FetchPage(context.Background(), srv.URL+"/big", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBodyTooLarge)

	resp, err := f.FetchPage(context.Background(), srv.URL+"/exact", 5*time.Second)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 1000)
}

func TestFetchPageTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).FetchPage(context.Background(), srv.URL, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStream(t *testing.T) {
	payload := bytes.Repeat([]byte{0xFF, 0xD8}, 10000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			http.Error(w, "gone", http.StatusGone)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer srv.Close()

	f := newTestFetcher(t)

	body, err := f.Stream(context.Background(), srv.URL+"/a.jpg", 5*time.Second)
	require.NoError(t, err)
	got, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, payload, got)

	_, err = f.Stream(context.Background(), srv.URL+"/missing.jpg", 5*time.Second)
	assert.ErrorIs(t, err, types.ErrBadStatus)
}
