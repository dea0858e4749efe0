package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"echotype/internal/models"
)

// Phase is the explicit state of a practice session. Every external
// event (input edit, check, advance, load) is one transition function;
// no behavior hangs off implicit flag combinations.
type Phase string

const (
	PhaseLoading     Phase = "loading"
	PhaseReady       Phase = "ready"
	PhaseChecking    Phase = "checking"
	PhaseCorrect     Phase = "correct"
	PhaseIncorrect   Phase = "incorrect"
	PhaseSetComplete Phase = "set_complete"
	PhaseFinished    Phase = "finished"
	PhaseError       Phase = "error"
)

// Result is the tri-state outcome for one item.
type Result string

const (
	ResultUnchecked Result = "unchecked"
	ResultCorrect   Result = "correct"
	ResultIncorrect Result = "incorrect"
)

var (
	// ErrBusy means another check/advance holds the re-entrancy lock;
	// rapid repeated triggers (key plus pointer) land here instead of
	// double-advancing.
	ErrBusy = errors.New("another operation is in flight")

	// ErrInvalidPhase means the operation is not legal in the current
	// phase (e.g. checking while a set is still loading).
	ErrInvalidPhase = errors.New("operation not valid in current phase")

	// ErrStale means an async completion arrived after the learner
	// moved to a different item or set; the result is dropped.
	ErrStale = errors.New("response superseded by a newer request")

	// ErrInputLocked means the item was answered correctly and its
	// input is read-only pending advance.
	ErrInputLocked = errors.New("input is locked after a correct answer")
)

// SessionConfig describes the set a session drills.
type SessionConfig struct {
	Mode        models.Mode
	GroupKey    string
	SetIndex    int
	PageSize    int           // 0 means the mode default
	SettleDelay time.Duration // pause before autoplaying a new item
}

// PracticeSession drives one learner through one set at a time:
// input, verify, reveal, advance, crossing set boundaries until the
// group is finished.
type PracticeSession struct {
	source   ItemSource
	player   Player
	examples *ExampleService
	progress *ProgressService
	log      *zap.SugaredLogger

	mu  sync.Mutex
	cfg SessionConfig

	group     []models.PracticeItem // deduplicated full collection
	window    []models.PracticeItem
	totalSets int

	phase   Phase
	failure string // user-facing message when phase is PhaseError
	current int

	inputs   [][]string
	results  []Result
	perToken [][]bool
	revealed []bool
	counted  []bool

	modalVisible bool

	busy  bool   // explicit lock token for SubmitCheck/Advance
	stamp uint64 // bumped when the active item or set changes

	caches map[string]*ExampleCache
}

// NewPracticeSession builds a session in PhaseLoading. Call Load to
// resolve the set window.
func NewPracticeSession(source ItemSource, player Player, examples *ExampleService, progress *ProgressService, log *zap.SugaredLogger, cfg SessionConfig) *PracticeSession {
	if cfg.PageSize <= 0 {
		cfg.PageSize = cfg.Mode.Kind().PageSize()
	}
	return &PracticeSession{
		source:   source,
		player:   player,
		examples: examples,
		progress: progress,
		log:      log,
		cfg:      cfg,
		phase:    PhaseLoading,
		caches:   make(map[string]*ExampleCache),
	}
}

// Load fetches the group's items and resolves the configured set
// window. On failure the session lands in a terminal PhaseError with a
// user-facing message; callers may invoke Load again as the explicit
// retry action. No partial state is visible while loading.
func (s *PracticeSession) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.phase != PhaseLoading && s.phase != PhaseError {
		s.mu.Unlock()
		return ErrInvalidPhase
	}
	s.phase = PhaseLoading
	s.failure = ""
	s.mu.Unlock()

	items, err := s.source.ListItems(ctx, s.cfg.GroupKey)
	if err != nil {
		s.fail("Could not load practice items. Check your connection and retry.")
		return fmt.Errorf("load items for %q: %w", s.cfg.GroupKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.group = DedupeItems(items)
	s.totalSets = TotalSets(s.group, s.cfg.PageSize)

	window, err := Window(s.group, s.cfg.PageSize, s.cfg.SetIndex)
	if err != nil {
		s.phase = PhaseError
		s.failure = "No more sets in this group."
		return err
	}

	s.installWindowLocked(window, s.cfg.SetIndex)
	return nil
}

// installWindowLocked replaces the current window and resets all
// per-item state. Callers hold s.mu.
func (s *PracticeSession) installWindowLocked(window []models.PracticeItem, setIndex int) {
	s.window = window
	s.cfg.SetIndex = setIndex
	s.current = 0
	s.modalVisible = false

	n := len(window)
	s.inputs = make([][]string, n)
	s.results = make([]Result, n)
	s.perToken = make([][]bool, n)
	s.revealed = make([]bool, n)
	s.counted = make([]bool, n)
	for i, item := range window {
		s.inputs[i] = make([]string, item.InputSlots())
		s.results[i] = ResultUnchecked
	}

	s.phase = PhaseReady
	s.stamp++
	s.scheduleAutoplayLocked()
}

// fail moves the session into the terminal error state.
func (s *PracticeSession) fail(message string) {
	s.mu.Lock()
	s.phase = PhaseError
	s.failure = message
	s.mu.Unlock()
}

// acquire takes the short-lived re-entrancy lock guarding check and
// advance. Released on completion, never by a timer.
func (s *PracticeSession) acquireLocked() error {
	if s.busy {
		return ErrBusy
	}
	s.busy = true
	return nil
}

// EditInput updates one input slot of the current item. Editing an item
// that already has a result clears it back to unchecked and hides the
// reveal and modal: the learner is retrying. Correct items are locked.
func (s *PracticeSession) EditInput(slot int, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.phase {
	case PhaseReady, PhaseIncorrect:
	default:
		return ErrInvalidPhase
	}

	if slot < 0 || slot >= len(s.inputs[s.current]) {
		return fmt.Errorf("input slot %d out of range", slot)
	}
	if s.results[s.current] == ResultCorrect {
		return ErrInputLocked
	}

	s.inputs[s.current][slot] = value

	if s.results[s.current] != ResultUnchecked {
		s.results[s.current] = ResultUnchecked
		s.perToken[s.current] = nil
		s.revealed[s.current] = false
		s.modalVisible = false
		s.phase = PhaseReady
	}
	return nil
}

// SubmitCheck verifies the current item's input. Correct answers
// reveal, show the completion modal, play the success cue, lock the
// input and count progress exactly once. Incorrect word answers play
// the error cue and stay editable; incorrect sentence answers also
// reveal so the learner sees which tokens were wrong.
func (s *PracticeSession) SubmitCheck(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if err := s.acquireLocked(); err != nil {
		s.mu.Unlock()
		return false, err
	}
	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	if s.phase != PhaseReady {
		s.mu.Unlock()
		return false, ErrInvalidPhase
	}
	s.phase = PhaseChecking

	item := s.window[s.current]
	input := s.inputs[s.current]
	idx := s.current
	s.mu.Unlock()

	var correct bool
	var perToken []bool
	if item.Kind == models.KindSentence {
		res := CheckSentence(item.Tokens, input)
		correct = res.AllCorrect
		perToken = res.PerToken
	} else {
		correct = CheckWord(item.Prompt, input[0])
	}

	s.mu.Lock()
	s.perToken[idx] = perToken

	if correct {
		s.results[idx] = ResultCorrect
		s.revealed[idx] = true
		s.modalVisible = true
		if idx == len(s.window)-1 {
			s.phase = PhaseSetComplete
		} else {
			s.phase = PhaseCorrect
		}

		firstTime := !s.counted[idx]
		s.counted[idx] = true
		s.mu.Unlock()

		s.player.PlaySuccessCue()
		if firstTime {
			s.progress.RecordCompletion(ctx, s.cfg.Mode)
		}
		return true, nil
	}

	s.results[idx] = ResultIncorrect
	if item.Kind == models.KindSentence {
		// Reveal without locking so the learner can compare and retry.
		s.revealed[idx] = true
	}
	s.phase = PhaseIncorrect
	s.mu.Unlock()

	s.player.PlayErrorCue()
	return false, nil
}

// Advance moves to the next item, or across the set boundary: the next
// window when more sets remain, PhaseFinished when the group is done.
// Idempotent under rapid repeated triggering via the re-entrancy lock.
func (s *PracticeSession) Advance(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquireLocked(); err != nil {
		return err
	}
	defer func() { s.busy = false }()

	switch s.phase {
	case PhaseReady, PhaseCorrect, PhaseIncorrect, PhaseSetComplete:
	default:
		return ErrInvalidPhase
	}

	s.modalVisible = false

	if s.current < len(s.window)-1 {
		s.current++
		s.stamp++
		if s.results[s.current] == ResultUnchecked {
			// Untouched item: make sure it starts blank.
			s.inputs[s.current] = make([]string, s.window[s.current].InputSlots())
			s.perToken[s.current] = nil
			s.revealed[s.current] = false
		}
		s.phase = PhaseReady
		s.scheduleAutoplayLocked()
		return nil
	}

	if s.cfg.SetIndex+1 < s.totalSets {
		window, err := Window(s.group, s.cfg.PageSize, s.cfg.SetIndex+1)
		if err != nil {
			// Cannot happen while group and totalSets agree.
			s.phase = PhaseError
			s.failure = "No more sets in this group."
			return err
		}
		s.installWindowLocked(window, s.cfg.SetIndex+1)
		return nil
	}

	s.phase = PhaseFinished
	s.stamp++
	return nil
}

// scheduleAutoplayLocked voices the current item after the settle
// delay, unless the learner has moved on meanwhile. Callers hold s.mu.
func (s *PracticeSession) scheduleAutoplayLocked() {
	item := s.window[s.current]
	stamp := s.stamp

	if s.cfg.SettleDelay <= 0 {
		s.player.Play(context.Background(), item.AudioURL, item.Prompt)
		return
	}

	time.AfterFunc(s.cfg.SettleDelay, func() {
		s.mu.Lock()
		fresh := s.stamp == stamp && (s.phase == PhaseReady || s.phase == PhaseIncorrect)
		s.mu.Unlock()
		if !fresh {
			return
		}
		s.player.Play(context.Background(), item.AudioURL, item.Prompt)
	})
}

// Close discards the session. Bumping the stamp invalidates any
// settle-delay autoplay still pending, so a discarded session never
// voices its item afterwards.
func (s *PracticeSession) Close() {
	s.mu.Lock()
	s.phase = PhaseFinished
	s.stamp++
	s.mu.Unlock()
}

// Replay voices the current item again immediately (the learner asked
// to hear it once more).
func (s *PracticeSession) Replay(ctx context.Context) error {
	s.mu.Lock()
	switch s.phase {
	case PhaseReady, PhaseCorrect, PhaseIncorrect, PhaseSetComplete:
	default:
		s.mu.Unlock()
		return ErrInvalidPhase
	}
	item := s.window[s.current]
	s.mu.Unlock()

	s.player.Play(ctx, item.AudioURL, item.Prompt)
	return nil
}

// GenerateExample requests one fresh usage example for the current
// item, avoiding everything already cached for it. A completion that
// arrives after the learner moved to a different item or set is dropped
// with ErrStale rather than mutating the now-inactive item's cache.
func (s *PracticeSession) GenerateExample(ctx context.Context) (models.ExampleEntry, error) {
	s.mu.Lock()
	switch s.phase {
	case PhaseReady, PhaseCorrect, PhaseIncorrect, PhaseSetComplete:
	default:
		s.mu.Unlock()
		return models.ExampleEntry{}, ErrInvalidPhase
	}
	item := s.window[s.current]
	stamp := s.stamp
	cache := s.caches[item.Key()]
	s.mu.Unlock()

	if cache == nil {
		loaded, err := s.examples.LoadExisting(ctx, item.Key())
		if err != nil {
			return models.ExampleEntry{}, fmt.Errorf("load examples for %q: %w", item.Key(), err)
		}

		s.mu.Lock()
		if s.stamp != stamp {
			s.mu.Unlock()
			return models.ExampleEntry{}, ErrStale
		}
		if existing := s.caches[item.Key()]; existing != nil {
			cache = existing
		} else {
			s.caches[item.Key()] = loaded
			cache = loaded
		}
		s.mu.Unlock()
	}

	entry, err := s.examples.GenerateEntry(ctx, item, cache.Sentences())
	if err != nil {
		return models.ExampleEntry{}, err
	}

	// Gate and append under one lock acquisition so an advance landing
	// in between cannot let the entry into an item the learner left.
	s.mu.Lock()
	if s.stamp != stamp {
		s.mu.Unlock()
		return models.ExampleEntry{}, ErrStale
	}
	cache.append(entry)
	s.mu.Unlock()

	s.examples.Persist(ctx, item, entry)
	return entry, nil
}

// Examples returns the example cache for the current item, loading the
// durable history on first access.
func (s *PracticeSession) Examples(ctx context.Context) (*ExampleCache, error) {
	s.mu.Lock()
	if s.phase == PhaseLoading || s.phase == PhaseError || s.phase == PhaseFinished {
		s.mu.Unlock()
		return nil, ErrInvalidPhase
	}
	item := s.window[s.current]
	stamp := s.stamp
	if cache := s.caches[item.Key()]; cache != nil {
		s.mu.Unlock()
		return cache, nil
	}
	s.mu.Unlock()

	loaded, err := s.examples.LoadExisting(ctx, item.Key())
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stamp != stamp {
		return nil, ErrStale
	}
	if existing := s.caches[item.Key()]; existing != nil {
		return existing, nil
	}
	s.caches[item.Key()] = loaded
	return loaded, nil
}

// SessionSnapshot is a consistent copy of the visible session state.
type SessionSnapshot struct {
	Phase        Phase                 `json:"phase"`
	Failure      string                `json:"failure,omitempty"`
	Mode         models.Mode           `json:"mode"`
	GroupKey     string                `json:"group"`
	SetIndex     int                   `json:"set_index"`
	TotalSets    int                   `json:"total_sets"`
	CurrentIndex int                   `json:"current_index"`
	Items        []models.PracticeItem `json:"items"`
	Inputs       [][]string            `json:"inputs"`
	Results      []Result              `json:"results"`
	PerToken     [][]bool              `json:"per_token"`
	Revealed     []bool                `json:"revealed"`
	ModalVisible bool                  `json:"modal_visible"`
}

// Snapshot copies the state the caller may render. Slices are deep
// copied so later transitions cannot race a renderer.
func (s *PracticeSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SessionSnapshot{
		Phase:        s.phase,
		Failure:      s.failure,
		Mode:         s.cfg.Mode,
		GroupKey:     s.cfg.GroupKey,
		SetIndex:     s.cfg.SetIndex,
		TotalSets:    s.totalSets,
		CurrentIndex: s.current,
		Items:        append([]models.PracticeItem(nil), s.window...),
		Results:      append([]Result(nil), s.results...),
		Revealed:     append([]bool(nil), s.revealed...),
		ModalVisible: s.modalVisible,
	}
	snap.Inputs = make([][]string, len(s.inputs))
	for i, in := range s.inputs {
		snap.Inputs[i] = append([]string(nil), in...)
	}
	snap.PerToken = make([][]bool, len(s.perToken))
	for i, pt := range s.perToken {
		snap.PerToken[i] = append([]bool(nil), pt...)
	}
	return snap
}
