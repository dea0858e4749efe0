package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
}

func respondWithError(log *zap.SugaredLogger, w http.ResponseWriter, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		log.Warnw(logMsg, "error", err)
	}

	respondWithJSON(log, w, status, errorResponse{Error: userMsg})
}

func respondWithJSON(log *zap.SugaredLogger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warnw("response encode failed", "error", err)
	}
}
