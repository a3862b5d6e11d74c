package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIconFinderFindsDeclaredIcon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><link rel="shortcut icon" href="/static/icon.png"></head></html>`))
	}))
	defer srv.Close()

	icon, err := NewIconFinder(newTestFetcher()).Find(context.Background(), srv.URL+"/blog/")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/static/icon.png", icon)
}

func TestIconFinderFallsBackToFavicon(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>No icon</title></head></html>`))
	}))
	defer srv.Close()

	icon, err := NewIconFinder(newTestFetcher()).Find(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/favicon.ico", icon)
}

func TestIconFinderReportsFetchErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewIconFinder(newTestFetcher()).Find(context.Background(), srv.URL)
	require.Error(t, err)
}
