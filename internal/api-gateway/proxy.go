// Package gateway roteia a API pública para o game-service (escrita/ledger) e
// para o live-service (projeção e WebSocket).
package gateway

import (
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
)

func rp(to string) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(to)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", to)
	}
	return httputil.NewSingleHostReverseProxy(u), nil
}

// NewHandler monta o mux com os prefixos /api/game e /api/live
func NewHandler(gameURL, liveURL string) (http.Handler, error) {
	game, err := rp(gameURL)
	if err != nil {
		return nil, err
	}
	live, err := rp(liveURL)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()

	// game (ex.: /api/game/v1/sessions -> game-service)
	mux.Handle("/api/game/", http.StripPrefix("/api/game", game))

	// live (ex.: /api/live/ws -> live-service, inclusive upgrade de WebSocket)
	mux.Handle("/api/live/", http.StripPrefix("/api/live", live))

	return withCORS(mux), nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
