package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

const speechRequestTimeout = 10 * time.Second

// Synthesizer turns text into speech via the Google Translate TTS
// endpoint (free, no API key) and caches the MP3s on disk. Concurrent
// requests for the same text are collapsed into one fetch.
type Synthesizer struct {
	cacheDir string
	locale   string
	rate     float64 // playback rate, slower than natural for intelligibility
	client   *http.Client
	group    singleflight.Group
}

// NewSynthesizer creates a synthesizer caching into cacheDir. locale is
// the fixed language tag (e.g. "en"); rate below 1.0 slows the voice.
func NewSynthesizer(cacheDir, locale string, rate float64) *Synthesizer {
	if locale == "" {
		locale = "en"
	}
	if rate <= 0 || rate > 1 {
		rate = 0.8
	}
	os.MkdirAll(cacheDir, 0o755)
	return &Synthesizer{
		cacheDir: cacheDir,
		locale:   locale,
		rate:     rate,
		client:   &http.Client{Timeout: speechRequestTimeout},
	}
}

// Synthesize returns MP3 bytes for the text, from cache when possible.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("nothing to synthesize")
	}

	path := s.cachePath(text)
	if data, err := os.ReadFile(path); err == nil {
		return data, nil
	}

	v, err, _ := s.group.Do(path, func() (any, error) {
		// Another goroutine may have filled the cache while we waited.
		if data, err := os.ReadFile(path); err == nil {
			return data, nil
		}

		data, err := s.fetch(ctx, text)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			// Serve the audio anyway; only the cache write failed.
			return data, nil
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Warm pre-generates clips for a batch of texts, skipping ones already
// cached. Errors are collected per text rather than aborting the batch.
func (s *Synthesizer) Warm(ctx context.Context, texts []string) map[string]error {
	failures := make(map[string]error)
	for _, text := range texts {
		if _, err := s.Synthesize(ctx, text); err != nil {
			failures[text] = err
		}
	}
	return failures
}

// CachedPath returns the cache file path for a text and whether the
// clip already exists.
func (s *Synthesizer) CachedPath(text string) (string, bool) {
	path := s.cachePath(text)
	_, err := os.Stat(path)
	return path, err == nil
}

func (s *Synthesizer) cachePath(text string) string {
	sanitized := strings.ToLower(strings.TrimSpace(text))
	sanitized = strings.ReplaceAll(sanitized, " ", "_")
	sanitized = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, sanitized)
	if len(sanitized) > 80 {
		sanitized = sanitized[:80]
	}
	return filepath.Join(s.cacheDir, fmt.Sprintf("speech_%s_%s.mp3", s.locale, sanitized))
}

func (s *Synthesizer) fetch(ctx context.Context, text string) ([]byte, error) {
	params := url.Values{}
	params.Set("ie", "UTF-8")
	params.Set("q", text)
	params.Set("tl", s.locale)
	params.Set("client", "tw-ob")
	params.Set("ttsspeed", fmt.Sprintf("%.2f", s.rate))
	params.Set("textlen", fmt.Sprintf("%d", len(text)))

	fullURL := "https://translate.google.com/translate_tts?" + params.Encode()

	reqCtx, cancel := context.WithTimeout(ctx, speechRequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	// The endpoint rejects requests without a browser user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch speech: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read speech body: %w", err)
	}
	return data, nil
}
