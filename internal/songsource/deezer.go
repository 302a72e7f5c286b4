// internal/songsource/deezer.go
package songsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/EliasL15/music-game-backend/internal/models"
)

// DefaultBaseURL is the public Deezer API root.
const DefaultBaseURL = "https://api.deezer.com"

// ErrIncompleteTrack marks a chart entry missing its title, artist name or
// preview URL. Callers treat it the same as a network failure: retryable.
var ErrIncompleteTrack = errors.New("incomplete track data received")

// Source supplies a random clue for a round. Implementations fail with a
// retryable error on network trouble or incomplete data; the round scheduler
// owns the retry policy.
type Source interface {
	FetchRandomClue(ctx context.Context) (*models.Clue, error)
}

// DeezerClient fetches clues from the Deezer global chart.
type DeezerClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewDeezerClient builds a client against baseURL, falling back to the
// public API when baseURL is empty.
func NewDeezerClient(baseURL string) *DeezerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &DeezerClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type chartResponse struct {
	Data []struct {
		Title  string `json:"title"`
		Artist struct {
			Name string `json:"name"`
		} `json:"artist"`
		Preview string `json:"preview"`
	} `json:"data"`
}

// FetchRandomClue pulls a single track from a uniformly random chart
// position between 1 and 100.
func (c *DeezerClient) FetchRandomClue(ctx context.Context) (*models.Clue, error) {
	position := rand.Intn(100) + 1

	q := url.Values{}
	q.Set("limit", "1")
	q.Set("index", strconv.Itoa(position))
	endpoint := fmt.Sprintf("%s/chart/0/tracks?%s", c.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build chart request: %w", err)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch chart track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart request returned status %d", resp.StatusCode)
	}

	var chart chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if len(chart.Data) == 0 {
		return nil, fmt.Errorf("chart position %d: %w", position, ErrIncompleteTrack)
	}

	track := chart.Data[0]
	if track.Title == "" || track.Artist.Name == "" || track.Preview == "" {
		return nil, fmt.Errorf("chart position %d: %w", position, ErrIncompleteTrack)
	}

	return &models.Clue{
		Song:     track.Title,
		Artist:   track.Artist.Name,
		AudioURL: track.Preview,
	}, nil
}
