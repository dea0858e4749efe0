package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"echotype/internal/security"
)

// NewRouter wires every endpoint. Example generation sits behind the
// rate limiter; everything else is budgeted by the client's own pace.
func NewRouter(practice *PracticeHandler, audio *AudioHandler, limiter *security.RateLimiter, log *zap.SugaredLogger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/sessions", practice.StartSession)
	mux.HandleFunc("GET /api/sessions/{id}", practice.GetSession)
	mux.HandleFunc("POST /api/sessions/{id}/retry", practice.RetryLoad)
	mux.HandleFunc("POST /api/sessions/{id}/input", practice.EditInput)
	mux.HandleFunc("POST /api/sessions/{id}/check", practice.SubmitCheck)
	mux.HandleFunc("POST /api/sessions/{id}/advance", practice.Advance)
	mux.HandleFunc("POST /api/sessions/{id}/replay", practice.Replay)
	mux.HandleFunc("GET /api/sessions/{id}/example", practice.GetExample)
	mux.HandleFunc("POST /api/sessions/{id}/example", RateLimit(limiter, log, practice.GenerateExample))
	mux.HandleFunc("POST /api/sessions/{id}/example/{direction}", practice.NavigateExample)
	mux.HandleFunc("DELETE /api/sessions/{id}", practice.EndSession)

	mux.HandleFunc("GET /api/groups", practice.ListGroups)
	mux.HandleFunc("GET /api/progress", practice.GetProgress)
	mux.HandleFunc("POST /api/progress/reset", practice.ResetProgress)

	if audio != nil {
		mux.HandleFunc("GET /api/speech", audio.Speech)
		mux.HandleFunc("GET /api/playback", audio.Playback)
		mux.HandleFunc("POST /api/audio/unlock", audio.Unlock)
		mux.HandleFunc("POST /api/audio/enabled", audio.SetEnabled)
		mux.HandleFunc("GET /api/audio/status", audio.Status)
	}

	return Logging(log, mux)
}
