package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrFetchDisabled         = errors.New("web fetch disabled")
	ErrUnexpectedContentType = errors.New("unexpected content type")
	ErrBodyTooShort          = errors.New("response body too short")
	ErrBlocked               = errors.New("response looks like a block page")
	ErrEmptyBody             = errors.New("empty response body")
)

// Strategy describes one way of requesting a page.
type Strategy struct {
	Name    string
	Headers map[string]string
	// Timeout overrides ScraperConfig.Timeout for this strategy.
	Timeout time.Duration
	// Delay is the minimum wait before this strategy is tried.
	Delay time.Duration
}

type ScraperConfig struct {
	Strategies   []Strategy
	MaxAttempts  int
	Timeout      time.Duration // per attempt
	RetryDelay   time.Duration // between attempts
	RateLimit    float64       // requests per second
	MinBodyBytes int
	MaxBodyBytes int64
	Disabled     bool
	Client       *http.Client
	Logger       *slog.Logger
	OnAttempt    func(Attempt)
}

// Attempt is the outcome of a single request.
type Attempt struct {
	Strategy string
	Number   int
	Status   int
	Duration time.Duration
	Err      error
}

// FetchFailure is returned when no strategy produced an acceptable response.
type FetchFailure struct {
	URL      string
	Attempts []Attempt
	Cause    error
}

func (f *FetchFailure) Error() string {
	if errors.Is(f.Cause, ErrFetchDisabled) {
		return fmt.Sprintf("fetching %s: %v", f.URL, f.Cause)
	}
	return fmt.Sprintf("fetching %s failed after %d attempts: %v", f.URL, len(f.Attempts), f.Cause)
}

func (f *FetchFailure) Unwrap() error {
	return f.Cause
}

type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d", e.Code)
}

type Scraper struct {
	config  ScraperConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var blockingIndicators = []string{
	"access denied",
	"you are being blocked",
	"bot detected",
	"security check required",
	"rate limit exceeded",
	"temporarily unavailable",
}

// DefaultStrategies is tried in order, cycling when MaxAttempts exceeds its length.
func DefaultStrategies() []Strategy {
	return []Strategy{
		{
			Name: "browser",
			Headers: map[string]string{
				"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				"Accept-Language": "en-US,en;q=0.9",
				"Referer":         "https://www.google.com/",
			},
		},
		{
			Name: "simple",
			Headers: map[string]string{
				"User-Agent": "Mozilla/5.0 (compatible; recipe-importer/1.0)",
				"Accept":     "text/html",
			},
			Delay: 2 * time.Second,
		},
		{
			Name: "curl",
			Headers: map[string]string{
				"User-Agent": "curl/8.4.0",
				"Accept":     "*/*",
			},
			Timeout: 30 * time.Second,
			Delay:   3 * time.Second,
		},
	}
}

func NewWithConfig(config ScraperConfig) *Scraper {
	if len(config.Strategies) == 0 {
		config.Strategies = DefaultStrategies()
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = 3
	}
	if config.Timeout == 0 {
		config.Timeout = 15 * time.Second
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = time.Second
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2 // 2 requests per second by default
	}
	if config.MinBodyBytes == 0 {
		config.MinBodyBytes = 100
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = 10 << 20
	}

	client := config.Client
	if client == nil {
		client = &http.Client{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scraper{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

func New() *Scraper {
	return NewWithConfig(ScraperConfig{})
}

// FetchHTML retrieves a page, trying each strategy in turn.
func (s *Scraper) FetchHTML(ctx context.Context, url string) (string, error) {
	body, _, err := s.fetch(ctx, url, s.checkHTML)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// FetchAsset retrieves a binary resource and its content type.
func (s *Scraper) FetchAsset(ctx context.Context, url string) ([]byte, string, error) {
	return s.fetch(ctx, url, func(_ string, body []byte) error {
		if len(body) == 0 {
			return ErrEmptyBody
		}
		return nil
	})
}

func (s *Scraper) fetch(ctx context.Context, url string, accept func(contentType string, body []byte) error) ([]byte, string, error) {
	if s.config.Disabled {
		s.logger.Debug("web fetch disabled", "url", url)
		return nil, "", &FetchFailure{URL: url, Cause: ErrFetchDisabled}
	}

	failure := &FetchFailure{URL: url}
	for i := 0; i < s.config.MaxAttempts; i++ {
		strategy := s.config.Strategies[i%len(s.config.Strategies)]

		if i > 0 {
			if err := wait(ctx, s.delayFor(strategy)); err != nil {
				failure.Cause = err
				return nil, "", failure
			}
		}

		// Apply rate limiting
		if err := s.limiter.Wait(ctx); err != nil {
			failure.Cause = err
			return nil, "", failure
		}

		start := time.Now()
		body, contentType, status, err := s.attempt(ctx, url, strategy, accept)
		attempt := Attempt{
			Strategy: strategy.Name,
			Number:   i + 1,
			Status:   status,
			Duration: time.Since(start),
			Err:      err,
		}
		failure.Attempts = append(failure.Attempts, attempt)
		if s.config.OnAttempt != nil {
			s.config.OnAttempt(attempt)
		}

		if err == nil {
			s.logger.Debug("fetch succeeded", "url", url, "strategy", strategy.Name, "attempt", i+1, "bytes", len(body))
			return body, contentType, nil
		}

		s.logger.Debug("fetch attempt failed", "url", url, "strategy", strategy.Name, "attempt", i+1, "status", status, "error", err)
		failure.Cause = err

		var reqErr *requestError
		if errors.As(err, &reqErr) || ctx.Err() != nil {
			break
		}
	}

	return nil, "", failure
}

type requestError struct {
	err error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func (s *Scraper) attempt(ctx context.Context, url string, strategy Strategy, accept func(string, []byte) error) ([]byte, string, int, error) {
	timeout := strategy.Timeout
	if timeout == 0 {
		timeout = s.config.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", 0, &requestError{err: fmt.Errorf("building request: %w", err)}
	}
	for k, v := range strategy.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", resp.StatusCode, &StatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBodyBytes))
	if err != nil {
		return nil, "", resp.StatusCode, fmt.Errorf("reading body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}
	if err := accept(contentType, body); err != nil {
		return nil, contentType, resp.StatusCode, err
	}
	return body, contentType, resp.StatusCode, nil
}

func (s *Scraper) checkHTML(contentType string, body []byte) error {
	ct := strings.ToLower(contentType)
	if !strings.Contains(ct, "text/html") && !strings.Contains(ct, "application/xhtml") && !strings.Contains(ct, "text/plain") {
		return fmt.Errorf("%w: %s", ErrUnexpectedContentType, contentType)
	}
	if len(body) < s.config.MinBodyBytes {
		return fmt.Errorf("%w: %d bytes", ErrBodyTooShort, len(body))
	}

	head := body
	if len(head) > 1000 {
		head = head[:1000]
	}
	lower := strings.ToLower(string(head))
	for _, indicator := range blockingIndicators {
		if strings.Contains(lower, indicator) && len(body) <= 5000 {
			return fmt.Errorf("%w: %q", ErrBlocked, indicator)
		}
	}
	return nil
}

func (s *Scraper) delayFor(strategy Strategy) time.Duration {
	if strategy.Delay > s.config.RetryDelay {
		return strategy.Delay
	}
	return s.config.RetryDelay
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
