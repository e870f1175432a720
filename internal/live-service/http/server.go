package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/live-service/ws"
)

// API expõe a projeção ao vivo para leitura; nunca escreve no Redis
type API struct {
	States ws.StateReader
	Hub    *ws.Hub
	Log    *zap.Logger
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/sessions/{id}/state", a.getState) // projeção completa
	r.Get("/v1/sessions/{id}/odds", a.getOdds)   // pool e cotações
	if a.Hub != nil {
		r.Get("/ws", a.Hub.HandleWS)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) getState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok, err := a.States.Get(r.Context(), id)
	if err != nil {
		a.Log.Warn("read projection failed", zap.String("sessionId", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL", "message": "projection unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "NOT_FOUND", "message": "session not projected"})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) getOdds(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, ok, err := a.States.Get(r.Context(), id)
	if err != nil {
		a.Log.Warn("read projection failed", zap.String("sessionId", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "INTERNAL", "message": "projection unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "NOT_FOUND", "message": "session not projected"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": st.SessionID,
		"version":   st.Version,
		"pool":      st.Pool,
		"odds":      st.Odds,
		"totalPool": st.TotalPool,
	})
}
