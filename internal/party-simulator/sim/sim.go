// Package sim joga rodadas completas contra a API do game-service: cria a
// sessão, entra com bots, abre um desafio, sorteia competidores, aposta e
// resolve. Serve para popular ambientes locais e gerar carga.
package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/dto"
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
)

var botNames = []string{"Ana", "Bruno", "Carla", "Diego", "Elisa", "Fábio", "Gabi", "Hugo", "Íris", "João"}

var ErrNotEnoughVolunteers = errors.New("not enough volunteers with balance")

type Runner struct {
	BaseURL     string // ex: http://localhost:8000/api/game
	Client      *http.Client
	Log         *zap.Logger
	Rand        randutil.Source
	Players     int
	Contestants int
	MaxStake    int64

	OnRound func(RoundResult)
}

type RoundResult struct {
	SessionID string
	Winner    string
	Bets      int
	Payouts   int64
}

// APIError é a resposta de erro do game-service
type APIError struct {
	Status int
	Body   dto.ErrorResponse
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Body.Error, e.Body.Message)
}

func (r *Runner) do(ctx context.Context, method, path string, in, out any) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(r.BaseURL, "/")+path, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

// NewSession cria uma sessão e coloca os bots nela
func (r *Runner) NewSession(ctx context.Context) (string, []string, error) {
	var created dto.CreateSessionResponse
	if err := r.do(ctx, http.MethodPost, "/v1/sessions", dto.CreateSessionRequest{HostName: "Simulator"}, &created); err != nil {
		return "", nil, fmt.Errorf("create session: %w", err)
	}
	base := "/v1/sessions/" + created.SessionID

	players := make([]string, 0, r.Players)
	for i := range r.Players {
		id := fmt.Sprintf("bot_%02d", i+1)
		req := dto.JoinSessionRequest{
			UserID:    id,
			FirstName: botNames[i%len(botNames)],
			LastName:  "Bot",
			Age:       18 + r.Rand.IntN(40),
		}
		if err := r.do(ctx, http.MethodPost, base+"/participants", req, nil); err != nil {
			return "", nil, fmt.Errorf("join %s: %w", id, err)
		}
		players = append(players, id)
	}
	return created.SessionID, players, nil
}

// PlayRound executa uma rodada inteira numa sessão em OPEN e volta para OPEN
func (r *Runner) PlayRound(ctx context.Context, sessionID string, players []string) (RoundResult, error) {
	base := "/v1/sessions/" + sessionID
	res := RoundResult{SessionID: sessionID}

	err := r.do(ctx, http.MethodPost, base+"/challenge", dto.CreateChallengeRequest{
		Name:          "Desafio simulado",
		RequiredCount: r.Contestants,
	}, nil)
	if err != nil {
		return res, fmt.Errorf("create challenge: %w", err)
	}

	// voluntários: o dobro do necessário, quando houver gente
	volunteers := randutil.Shuffle(r.Rand, players)
	if n := 2 * r.Contestants; n < len(volunteers) {
		volunteers = volunteers[:n]
	}
	accepted := 0
	for _, id := range volunteers {
		err := r.do(ctx, http.MethodPost, base+"/challenge/volunteers", dto.VolunteerRequest{UserID: id}, nil)
		var apiErr *APIError
		switch {
		case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
			continue // sem saldo ou fora da faixa etária
		case err != nil:
			return res, fmt.Errorf("volunteer %s: %w", id, err)
		}
		accepted++
	}
	if accepted < r.Contestants {
		_ = r.do(ctx, http.MethodPost, base+"/challenge/cancel", nil, nil)
		return res, ErrNotEnoughVolunteers
	}

	if err := r.do(ctx, http.MethodPost, base+"/challenge/close-volunteering", nil, nil); err != nil {
		return res, fmt.Errorf("close volunteering: %w", err)
	}
	var sel dto.SelectContestantsResponse
	if err := r.do(ctx, http.MethodPost, base+"/challenge/select", dto.SelectContestantsRequest{Mode: "RANDOM", Count: r.Contestants}, &sel); err != nil {
		return res, fmt.Errorf("select: %w", err)
	}
	if err := r.do(ctx, http.MethodPost, base+"/challenge/start-betting", nil, nil); err != nil {
		return res, fmt.Errorf("start betting: %w", err)
	}

	contestant := map[string]bool{}
	for _, id := range sel.Contestants {
		contestant[id] = true
	}
	for _, id := range players {
		if contestant[id] {
			continue
		}
		var p dto.ParticipantResponse
		if err := r.do(ctx, http.MethodGet, base+"/participants/"+id, nil, &p); err != nil {
			return res, fmt.Errorf("participant %s: %w", id, err)
		}
		stake := min(r.MaxStake, p.Balance)
		if stake <= 0 {
			continue
		}
		amount := 1 + int64(r.Rand.IntN(int(stake)))
		target := sel.Contestants[r.Rand.IntN(len(sel.Contestants))]
		err := r.do(ctx, http.MethodPost, base+"/bets", dto.PlaceBetRequest{UserID: id, ContestantID: target, NewAmount: amount}, nil)
		if err != nil {
			return res, fmt.Errorf("bet %s: %w", id, err)
		}
		res.Bets++
	}

	if err := r.do(ctx, http.MethodPost, base+"/challenge/close-betting", nil, nil); err != nil {
		return res, fmt.Errorf("close betting: %w", err)
	}
	res.Winner = sel.Contestants[r.Rand.IntN(len(sel.Contestants))]
	var resolved dto.ResolveResponse
	if err := r.do(ctx, http.MethodPost, base+"/challenge/resolve", dto.ResolveRequest{WinnerID: res.Winner}, &resolved); err != nil {
		return res, fmt.Errorf("resolve: %w", err)
	}
	res.Payouts = resolved.TotalPayouts

	if err := r.do(ctx, http.MethodPost, base+"/reset", nil, nil); err != nil {
		return res, fmt.Errorf("reset: %w", err)
	}

	r.Log.Info("round played",
		zap.String("sessionId", sessionID),
		zap.String("winner", res.Winner),
		zap.Int("bets", res.Bets),
		zap.Int64("payouts", res.Payouts))
	if r.OnRound != nil {
		r.OnRound(res)
	}
	return res, nil
}
