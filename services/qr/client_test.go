package qr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func TestGenerateSniffsContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "https://example.org/movie/603", r.URL.Query().Get("data"))
		assert.Equal(t, "300x300", r.URL.Query().Get("size"))
		// Deliberately wrong header: the sniffed type must win.
		w.Header().Set("Content-Type", "text/plain")
		w.Write(pngMagic)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 300, srv.Client())
	payload, err := c.Generate(context.Background(), "https://example.org/movie/603")
	require.NoError(t, err)

	assert.Equal(t, "image/png", payload.ContentType)
	assert.True(t, strings.HasPrefix(payload.DataURL(), "data:image/png;base64,"), "data url %q", payload.DataURL())
}

func TestGenerateEmptyTarget(t *testing.T) {
	c := NewClient("http://unused", 300, nil)
	_, err := c.Generate(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyTarget)
}

func TestGenerateClientErrorDoesNotRetry(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 300, srv.Client())
	_, err := c.Generate(context.Background(), "https://example.org/movie/603")
	require.Error(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt64(&calls))
}

func TestGenerateRetriesServerError(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt64(&calls, 1) < 2 {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write(pngMagic)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 300, srv.Client())
	payload, err := c.Generate(context.Background(), "https://example.org/movie/603")
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt64(&calls))
	assert.NotEmpty(t, payload.Bytes)
}
