package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// Sink receives a finished audible stream. Implementations decide what
// "audible" means: an HTTP response being streamed to the learner's
// device, a local player, or a test recorder. Play must return promptly
// when ctx is cancelled.
type Sink interface {
	Play(ctx context.Context, label string, data []byte) error
}

// PlayRequest names the sources available for one playback.
type PlayRequest struct {
	AudioURL     string // recorded clip, may be empty
	FallbackText string // text for synthesized speech, may be empty
}

// ErrNoSource is returned by a strategy when the request carries
// nothing it can play; the coordinator moves on to the next strategy.
var ErrNoSource = errors.New("no source for playback strategy")

// Strategy fetches the audio bytes for one way of voicing an item.
// Strategies are tried in order with a shared cancellation token.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, req PlayRequest) ([]byte, error)
}

// FilePlayback downloads the item's recorded clip.
type FilePlayback struct {
	client *http.Client
}

func NewFilePlayback(client *http.Client) *FilePlayback {
	if client == nil {
		client = &http.Client{Timeout: speechRequestTimeout}
	}
	return &FilePlayback{client: client}
}

func (f *FilePlayback) Name() string { return "file" }

func (f *FilePlayback) Fetch(ctx context.Context, req PlayRequest) ([]byte, error) {
	if req.AudioURL == "" {
		return nil, ErrNoSource
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.AudioURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// SpeechSynthesis voices the fallback text through the synthesizer.
type SpeechSynthesis struct {
	synth *Synthesizer
}

func NewSpeechSynthesis(synth *Synthesizer) *SpeechSynthesis {
	return &SpeechSynthesis{synth: synth}
}

func (s *SpeechSynthesis) Name() string { return "speech" }

func (s *SpeechSynthesis) Fetch(ctx context.Context, req PlayRequest) ([]byte, error) {
	if req.FallbackText == "" {
		return nil, ErrNoSource
	}
	return s.synth.Synthesize(ctx, req.FallbackText)
}

// Cue identifies a short pre-loaded feedback sound.
type Cue string

const (
	CueSuccess Cue = "success"
	CueError   Cue = "error"
)

// Coordinator owns the single audible stream. Every component requests
// playback through it; it guarantees stop-then-start semantics so two
// streams are never audible at once.
type Coordinator struct {
	strategies []Strategy
	sink       Sink
	log        *zap.SugaredLogger

	// startMu serializes stop-then-start sequences so two overlapping
	// Play calls can never leave two streams running.
	startMu sync.Mutex

	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	enabled  bool
	unlocked bool
	cues     map[Cue][]byte
}

// NewCoordinator builds a coordinator trying strategies in order
// (typically [FilePlayback, SpeechSynthesis]).
func NewCoordinator(sink Sink, log *zap.SugaredLogger, strategies ...Strategy) *Coordinator {
	return &Coordinator{
		strategies: strategies,
		sink:       sink,
		log:        log,
		enabled:    true,
		cues:       make(map[Cue][]byte),
	}
}

// LoadCues preloads the success/error feedback sounds from dir.
// Best-effort: a missing file just mutes that cue.
func (c *Coordinator) LoadCues(dir string) {
	for _, cue := range []Cue{CueSuccess, CueError} {
		data, err := os.ReadFile(filepath.Join(dir, string(cue)+".mp3"))
		if err != nil {
			c.log.Debugw("feedback cue unavailable", "cue", cue, "error", err)
			continue
		}
		c.mu.Lock()
		c.cues[cue] = data
		c.mu.Unlock()
	}
}

// Play voices an item: the recorded clip if AudioURL is set, degrading
// to synthesized speech from fallbackText, degrading to silence. Any
// in-flight playback is cancelled and drained first, so at most one
// stream is ever audible. Non-blocking; with neither source it is a
// no-op, and while sound is disabled nothing is delivered at all.
func (c *Coordinator) Play(ctx context.Context, audioURL, fallbackText string) {
	if audioURL == "" && fallbackText == "" {
		return
	}

	c.mu.Lock()
	enabled := c.enabled
	c.mu.Unlock()
	if !enabled {
		return
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.stopAndDrain()

	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel = cancel
	c.done = done
	c.mu.Unlock()

	req := PlayRequest{AudioURL: audioURL, FallbackText: fallbackText}

	go func() {
		defer close(done)
		c.run(playCtx, req)
	}()
}

// run walks the strategy chain under one cancellation token.
func (c *Coordinator) run(ctx context.Context, req PlayRequest) {
	for _, strategy := range c.strategies {
		if ctx.Err() != nil {
			// Superseded by a newer request; an explicit abort is not a
			// playback failure, so no fallback.
			return
		}

		data, err := strategy.Fetch(ctx, req)
		if err != nil {
			if !errors.Is(err, ErrNoSource) && ctx.Err() == nil {
				c.log.Debugw("playback strategy failed, degrading", "strategy", strategy.Name(), "error", err)
			}
			continue
		}

		if err := c.sink.Play(ctx, strategy.Name(), data); err != nil {
			if ctx.Err() == nil {
				c.log.Debugw("sink rejected stream, degrading", "strategy", strategy.Name(), "error", err)
			}
			continue
		}
		return
	}
	// Every strategy failed: degrade to silence. Never surfaced.
}

// Stop cancels any in-flight playback and waits for it to drain.
func (c *Coordinator) Stop() {
	c.startMu.Lock()
	defer c.startMu.Unlock()
	c.stopAndDrain()
}

// stopAndDrain cancels the active stream and blocks until its goroutine
// exits. Callers hold c.startMu.
func (c *Coordinator) stopAndDrain() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// PlaySuccessCue plays the short success sound. Best-effort: muted when
// sound is disabled, and failures are logged and swallowed.
func (c *Coordinator) PlaySuccessCue() { c.playCue(CueSuccess) }

// PlayErrorCue plays the short error sound, same contract as
// PlaySuccessCue.
func (c *Coordinator) PlayErrorCue() { c.playCue(CueError) }

func (c *Coordinator) playCue(cue Cue) {
	c.mu.Lock()
	enabled := c.enabled
	data := c.cues[cue]
	c.mu.Unlock()

	if !enabled || len(data) == 0 {
		return
	}

	// Cues are independent of the content stream and never cancel it.
	go func() {
		if err := c.sink.Play(context.Background(), "cue:"+string(cue), data); err != nil {
			c.log.Debugw("feedback cue failed", "cue", cue, "error", err)
		}
	}()
}

// Unlock records that a user interaction has unlocked the sound
// subsystem (autoplay policies demand one).
func (c *Coordinator) Unlock() {
	c.mu.Lock()
	c.unlocked = true
	c.mu.Unlock()
}

// SetEnabled toggles all sound output, cues included.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	if !enabled {
		c.Stop()
	}
}

// Ready reports whether sound is unlocked and enabled.
func (c *Coordinator) Ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unlocked && c.enabled
}
