// internal/songsource/deezer_test.go
package songsource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chartServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chart/0/tracks", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))

		index, err := strconv.Atoi(r.URL.Query().Get("index"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, index, 1)
		assert.LessOrEqual(t, index, 100)

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestFetchRandomClue(t *testing.T) {
	srv := chartServer(t, `{"data":[{"title":"Give Me Everything","artist":{"name":"Pitbull"},"preview":"https://cdn.deezer.com/preview.mp3","duration":261}]}`)
	defer srv.Close()

	clue, err := NewDeezerClient(srv.URL).FetchRandomClue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Give Me Everything", clue.Song)
	assert.Equal(t, "Pitbull", clue.Artist)
	assert.Equal(t, "https://cdn.deezer.com/preview.mp3", clue.AudioURL)
}

func TestFetchRandomClueIncompleteData(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"empty chart page", `{"data":[]}`},
		{"missing preview", `{"data":[{"title":"Levels","artist":{"name":"Avicii"},"preview":""}]}`},
		{"missing title", `{"data":[{"title":"","artist":{"name":"Avicii"},"preview":"https://cdn/x.mp3"}]}`},
		{"missing artist", `{"data":[{"title":"Levels","artist":{"name":""},"preview":"https://cdn/x.mp3"}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chartServer(t, tc.body)
			defer srv.Close()

			clue, err := NewDeezerClient(srv.URL).FetchRandomClue(context.Background())
			assert.Nil(t, clue)
			assert.ErrorIs(t, err, ErrIncompleteTrack)
		})
	}
}

func TestFetchRandomClueUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	clue, err := NewDeezerClient(srv.URL).FetchRandomClue(context.Background())
	assert.Nil(t, clue)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrIncompleteTrack)
}

func TestFetchRandomClueBadJSON(t *testing.T) {
	srv := chartServer(t, `{"data": [`)
	defer srv.Close()

	_, err := NewDeezerClient(srv.URL).FetchRandomClue(context.Background())
	require.Error(t, err)
}

func TestNewDeezerClientDefaultBase(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, NewDeezerClient("").BaseURL)
}
