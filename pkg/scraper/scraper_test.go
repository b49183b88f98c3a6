package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPage = `<html><head><title>Test Page</title></head><body><main>` +
	strings.Repeat("<p>This is a test paragraph.</p>", 5) +
	`</main></body></html>`

func testStrategies() []Strategy {
	return []Strategy{
		{Name: "first", Headers: map[string]string{"User-Agent": "first-agent"}},
		{Name: "second", Headers: map[string]string{"User-Agent": "second-agent"}},
		{Name: "third", Headers: map[string]string{"User-Agent": "third-agent"}},
	}
}

func testConfig() ScraperConfig {
	return ScraperConfig{
		Strategies: testStrategies(),
		Timeout:    time.Second,
		RetryDelay: 5 * time.Millisecond,
		RateLimit:  1000,
	}
}

func TestScraperConfig(t *testing.T) {
	s := New()

	assert.Equal(t, 3, s.config.MaxAttempts)
	assert.Len(t, s.config.Strategies, 3)
	assert.Equal(t, 15*time.Second, s.config.Timeout)
	assert.Equal(t, 100, s.config.MinBodyBytes)
	assert.False(t, s.config.Disabled)
}

func TestFetchHTMLWithMockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "first-agent", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	var attempts []Attempt
	config := testConfig()
	config.OnAttempt = func(a Attempt) { attempts = append(attempts, a) }
	s := NewWithConfig(config)

	html, err := s.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, html, "Test Page")
	require.Len(t, attempts, 1)
	assert.Equal(t, "first", attempts[0].Strategy)
	assert.Equal(t, http.StatusOK, attempts[0].Status)
}

func TestFetchHTMLFallsBackToNextStrategy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "first-agent" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(testPage))
	}))
	defer server.Close()

	var attempts []Attempt
	config := testConfig()
	config.OnAttempt = func(a Attempt) { attempts = append(attempts, a) }
	s := NewWithConfig(config)

	_, err := s.FetchHTML(context.Background(), server.URL)
	require.NoError(t, err)
	require.Len(t, attempts, 2)
	assert.Equal(t, http.StatusForbidden, attempts[0].Status)
	assert.Equal(t, "second", attempts[1].Strategy)
}

func TestFetchHTMLExhaustsStrategies(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	config := testConfig()
	config.RetryDelay = 30 * time.Millisecond
	s := NewWithConfig(config)

	start := time.Now()
	_, err := s.FetchHTML(context.Background(), server.URL)
	elapsed := time.Since(start)

	require.Error(t, err)
	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, server.URL, failure.URL)
	assert.Len(t, failure.Attempts, 3)
	assert.Equal(t, int32(3), hits.Load())

	var status *StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.Code)

	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond, "inter-attempt delay must be observed")
}

func TestFetchHTMLCyclesStrategies(t *testing.T) {
	var mu sync.Mutex
	var agents []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents = append(agents, r.Header.Get("User-Agent"))
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	config := testConfig()
	config.Strategies = config.Strategies[:2]
	config.MaxAttempts = 3
	s := NewWithConfig(config)

	_, err := s.FetchHTML(context.Background(), server.URL)
	require.Error(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"first-agent", "second-agent", "first-agent"}, agents)
}

func TestFetchDisabled(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	config := testConfig()
	config.Disabled = true
	s := NewWithConfig(config)

	_, err := s.FetchHTML(context.Background(), server.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFetchDisabled))

	_, _, err = s.FetchAsset(context.Background(), server.URL+"/img.png")
	assert.ErrorIs(t, err, ErrFetchDisabled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchAttemptTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(500 * time.Millisecond):
		}
	}))
	defer server.Close()

	config := testConfig()
	config.Timeout = 20 * time.Millisecond
	config.MaxAttempts = 2
	s := NewWithConfig(config)

	_, err := s.FetchHTML(context.Background(), server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	var failure *FetchFailure
	require.ErrorAs(t, err, &failure)
	assert.Len(t, failure.Attempts, 2)
}

func TestFetchCancelledContext(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewWithConfig(testConfig())
	_, err := s.FetchHTML(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), hits.Load())
}

func TestFetchInvalidURLStopsEarly(t *testing.T) {
	var attempts int
	config := testConfig()
	config.OnAttempt = func(Attempt) { attempts++ }
	s := NewWithConfig(config)

	_, err := s.FetchHTML(context.Background(), "http://bad host/%zz")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCheckHTML(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		expected    error
	}{
		{"html page", "text/html", testPage, nil},
		{"json", "application/json", testPage, ErrUnexpectedContentType},
		{"short", "text/html", "<html></html>", ErrBodyTooShort},
		{"blocked", "text/html", "<html><body>Access Denied. " + strings.Repeat(".", 200) + "</body></html>", ErrBlocked},
		{"large page mentioning block", "text/html", "<p>access denied</p>" + strings.Repeat("x", 6000), nil},
	}

	s := NewWithConfig(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.checkHTML(tt.contentType, []byte(tt.body))
			if tt.expected == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestFetchAsset(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(png)
	}))
	defer server.Close()

	s := NewWithConfig(testConfig())
	data, contentType, err := s.FetchAsset(context.Background(), server.URL+"/photo.png")
	require.NoError(t, err)
	assert.Equal(t, png, data)
	assert.Equal(t, "image/png", contentType)
}
