package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"echotype/internal/generator"
	"echotype/internal/models"
	"echotype/internal/service"
)

// PracticeHandler exposes the practice engine over JSON. Sessions live
// in memory, keyed by an opaque id handed to the client on start.
type PracticeHandler struct {
	mu       sync.RWMutex
	sessions map[string]*service.PracticeSession

	items    service.ItemSource
	catalog  *service.CatalogService
	examples *service.ExampleService
	progress *service.ProgressService
	player   service.Player
	log      *zap.SugaredLogger
	settle   time.Duration
}

func NewPracticeHandler(items service.ItemSource, catalog *service.CatalogService, examples *service.ExampleService, progress *service.ProgressService, player service.Player, log *zap.SugaredLogger, settle time.Duration) *PracticeHandler {
	return &PracticeHandler{
		sessions: make(map[string]*service.PracticeSession),
		items:    items,
		catalog:  catalog,
		examples: examples,
		progress: progress,
		player:   player,
		log:      log,
		settle:   settle,
	}
}

type startSessionRequest struct {
	Mode     string `json:"mode"`
	GroupKey string `json:"group"`
	SetIndex int    `json:"set_index"`
}

type sessionResponse struct {
	SessionID string                  `json:"session_id,omitempty"`
	State     service.SessionSnapshot `json:"state"`
}

// StartSession creates a session and loads its first window. A load
// failure still registers the session: the returned state carries the
// error phase and the client retries via the retry endpoint.
func (h *PracticeHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	mode, err := parseMode(req.Mode)
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}
	if req.GroupKey == "" {
		respondWithError(h.log, w, http.StatusBadRequest, "group is required", "", nil)
		return
	}

	sess := service.NewPracticeSession(h.items, h.player, h.examples, h.progress, h.log, service.SessionConfig{
		Mode:        mode,
		GroupKey:    req.GroupKey,
		SetIndex:    req.SetIndex,
		SettleDelay: h.settle,
	})

	if err := sess.Load(r.Context()); err != nil {
		if errors.Is(err, service.ErrSetRange) {
			respondWithError(h.log, w, http.StatusNotFound, "No such set in this group", "", err)
			return
		}
		h.log.Warnw("session load failed", "group", req.GroupKey, "error", err)
	}

	id := uuid.NewString()
	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()

	respondWithJSON(h.log, w, http.StatusCreated, sessionResponse{SessionID: id, State: sess.Snapshot()})
}

// GetSession returns the current session state.
func (h *PracticeHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, sessionResponse{State: sess.Snapshot()})
}

// RetryLoad re-runs the load after a failure.
func (h *PracticeHandler) RetryLoad(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Load(r.Context()); err != nil && !errors.Is(err, service.ErrSetRange) {
		h.log.Warnw("session reload failed", "error", err)
	}
	respondWithJSON(h.log, w, http.StatusOK, sessionResponse{State: sess.Snapshot()})
}

type inputRequest struct {
	Slot  int    `json:"slot"`
	Value string `json:"value"`
}

// EditInput writes one input slot of the current item.
func (h *PracticeHandler) EditInput(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}

	if err := sess.EditInput(req.Slot, req.Value); err != nil {
		switch {
		case errors.Is(err, service.ErrInputLocked), errors.Is(err, service.ErrInvalidPhase):
			respondWithError(h.log, w, http.StatusConflict, "Input is not editable right now", "", nil)
		default:
			respondWithError(h.log, w, http.StatusBadRequest, err.Error(), "", nil)
		}
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, sessionResponse{State: sess.Snapshot()})
}

type checkResponse struct {
	Correct bool                    `json:"correct"`
	State   service.SessionSnapshot `json:"state"`
}

// SubmitCheck verifies the current item.
func (h *PracticeHandler) SubmitCheck(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	correct, err := sess.SubmitCheck(r.Context())
	if err != nil {
		h.respondTransitionError(w, err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, checkResponse{Correct: correct, State: sess.Snapshot()})
}

// Advance moves to the next item or set.
func (h *PracticeHandler) Advance(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if err := sess.Advance(r.Context()); err != nil {
		if errors.Is(err, service.ErrSetRange) {
			respondWithError(h.log, w, http.StatusConflict, "No more sets in this group", "", nil)
			return
		}
		h.respondTransitionError(w, err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, sessionResponse{State: sess.Snapshot()})
}

// Replay voices the current item again.
func (h *PracticeHandler) Replay(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if err := sess.Replay(r.Context()); err != nil {
		h.respondTransitionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type exampleResponse struct {
	Example  *models.ExampleEntry `json:"example,omitempty"`
	Position int                  `json:"position"`
	Total    int                  `json:"total"`
}

// GetExample returns the current entry of the active item's example
// cache, loading history on first access.
func (h *PracticeHandler) GetExample(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cache, err := sess.Examples(r.Context())
	if err != nil {
		h.respondExampleError(w, err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, exampleView(cache))
}

// GenerateExample requests a fresh example for the active item.
func (h *PracticeHandler) GenerateExample(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	if _, err := sess.GenerateExample(r.Context()); err != nil {
		h.respondExampleError(w, err)
		return
	}

	cache, err := sess.Examples(r.Context())
	if err != nil {
		h.respondExampleError(w, err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, exampleView(cache))
}

// NavigateExample steps the example cache pointer. Direction comes
// from the {direction} path segment: "next" or "prev".
func (h *PracticeHandler) NavigateExample(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.lookup(w, r)
	if !ok {
		return
	}

	cache, err := sess.Examples(r.Context())
	if err != nil {
		h.respondExampleError(w, err)
		return
	}

	switch r.PathValue("direction") {
	case "next":
		cache.Next()
	case "prev":
		cache.Prev()
	default:
		respondWithError(h.log, w, http.StatusBadRequest, "direction must be next or prev", "", nil)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, exampleView(cache))
}

// EndSession discards a session.
func (h *PracticeHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	h.mu.Lock()
	sess, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()

	if !ok {
		respondWithError(h.log, w, http.StatusNotFound, "Unknown session", "", nil)
		return
	}
	sess.Close()
	w.WriteHeader(http.StatusNoContent)
}

// ListGroups returns the group catalog.
func (h *PracticeHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.catalog.Groups(r.Context())
	if err != nil {
		respondWithError(h.log, w, http.StatusInternalServerError, "Could not load groups", "group list failed", err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, groups)
}

type progressResponse struct {
	Mode      models.Mode `json:"mode"`
	Completed int         `json:"completed"`
}

// GetProgress returns the durable completion counter for a mode.
func (h *PracticeHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	count, err := h.progress.Load(r.Context(), mode)
	if err != nil {
		respondWithError(h.log, w, http.StatusInternalServerError, "Could not load progress", "progress load failed", err)
		return
	}
	respondWithJSON(h.log, w, http.StatusOK, progressResponse{Mode: mode, Completed: count})
}

// ResetProgress zeroes the counter for a mode.
func (h *PracticeHandler) ResetProgress(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r.URL.Query().Get("mode"))
	if err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, err.Error(), "", nil)
		return
	}

	if err := h.progress.Reset(r.Context(), mode); err != nil {
		respondWithError(h.log, w, http.StatusInternalServerError, "Could not reset progress", "progress reset failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PracticeHandler) lookup(w http.ResponseWriter, r *http.Request) (*service.PracticeSession, bool) {
	id := r.PathValue("id")
	h.mu.RLock()
	sess, ok := h.sessions[id]
	h.mu.RUnlock()
	if !ok {
		respondWithError(h.log, w, http.StatusNotFound, "Unknown session", "", nil)
		return nil, false
	}
	return sess, true
}

func (h *PracticeHandler) respondTransitionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrBusy):
		respondWithError(h.log, w, http.StatusConflict, "Another action is still in progress", "", nil)
	case errors.Is(err, service.ErrInvalidPhase):
		respondWithError(h.log, w, http.StatusConflict, "Action not available right now", "", nil)
	default:
		respondWithError(h.log, w, http.StatusInternalServerError, "Something went wrong", "session transition failed", err)
	}
}

func (h *PracticeHandler) respondExampleError(w http.ResponseWriter, err error) {
	var upstream *generator.UpstreamError
	switch {
	case errors.Is(err, service.ErrStale):
		respondWithError(h.log, w, http.StatusConflict, "The item changed while generating", "", nil)
	case errors.Is(err, service.ErrInvalidPhase):
		respondWithError(h.log, w, http.StatusConflict, "Examples are not available right now", "", nil)
	case errors.As(err, &upstream):
		respondWithError(h.log, w, upstreamStatus(upstream), upstream.Message(), "generator upstream error", err)
	case errors.Is(err, generator.ErrParse):
		respondWithError(h.log, w, http.StatusBadGateway,
			"The generator returned something unusable. Try again.", "generator parse failure", err)
	default:
		respondWithError(h.log, w, http.StatusInternalServerError, "Could not load examples", "example lookup failed", err)
	}
}

func upstreamStatus(err *generator.UpstreamError) int {
	switch err.Kind {
	case generator.UpstreamAuth:
		return http.StatusBadGateway
	case generator.UpstreamRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func exampleView(cache *service.ExampleCache) exampleResponse {
	resp := exampleResponse{Position: cache.Pos(), Total: cache.Len()}
	if entry, ok := cache.Current(); ok {
		resp.Example = &entry
	}
	return resp
}

func parseMode(s string) (models.Mode, error) {
	switch models.Mode(s) {
	case models.ModeVocabulary:
		return models.ModeVocabulary, nil
	case models.ModeSentence:
		return models.ModeSentence, nil
	default:
		return "", errors.New("mode must be vocabulary or sentence")
	}
}
