package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"echotype/internal/audio"
)

// AudioHandler serves synthesized speech and the coordinator's current
// clip, and exposes the sound toggles.
type AudioHandler struct {
	synth       *audio.Synthesizer
	sink        *audio.BufferSink
	coordinator *audio.Coordinator
	log         *zap.SugaredLogger
}

func NewAudioHandler(synth *audio.Synthesizer, sink *audio.BufferSink, coordinator *audio.Coordinator, log *zap.SugaredLogger) *AudioHandler {
	return &AudioHandler{synth: synth, sink: sink, coordinator: coordinator, log: log}
}

// Speech synthesizes the requested text and serves the mp3. Repeated
// requests hit the disk cache.
func (h *AudioHandler) Speech(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		respondWithError(h.log, w, http.StatusBadRequest, "text is required", "", nil)
		return
	}

	data, err := h.synth.Synthesize(r.Context(), text)
	if err != nil {
		respondWithError(h.log, w, http.StatusBadGateway, "Speech synthesis unavailable", "synthesis failed", err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.Write(data)
}

// Playback serves the clip most recently delivered by the coordinator.
// Clients compare the sequence header against the last one they played
// and skip clips they already heard.
func (h *AudioHandler) Playback(w http.ResponseWriter, r *http.Request) {
	label, data, seq := h.sink.Current()
	if len(data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Playback-Label", label)
	w.Header().Set("X-Playback-Seq", strconv.FormatUint(seq, 10))
	w.Write(data)
}

// Unlock records the user gesture that permits sound output.
func (h *AudioHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.coordinator.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type soundRequest struct {
	Enabled bool `json:"enabled"`
}

// SetEnabled toggles all sound output. Disabling also stops anything
// currently playing.
func (h *AudioHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	var req soundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(h.log, w, http.StatusBadRequest, "Invalid request body", "", err)
		return
	}
	h.coordinator.SetEnabled(req.Enabled)
	w.WriteHeader(http.StatusNoContent)
}

type audioStatus struct {
	Ready bool `json:"ready"`
}

// Status reports whether sound output is currently permitted.
func (h *AudioHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(h.log, w, http.StatusOK, audioStatus{Ready: h.coordinator.Ready()})
}
