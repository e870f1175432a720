// Package projection mantém a projeção ao vivo das sessões no Redis.
//
// A projeção é derivada dos snapshots versionados publicados pelo game-service:
// nunca é lida para autorizar movimentação de saldo e pode ser reconstruída a
// qualquer momento a partir do ledger.
package projection

import (
	"time"

	"github.com/radieske/party-bet-platform/internal/game-service/odds"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

// State é o registro da projeção de uma sessão
type State struct {
	SessionID        string `json:"sessionId"`
	Version          int64  `json:"version"`
	Phase            string `json:"phase"`
	HostName         string `json:"hostName"`
	ParticipantCount int    `json:"participantCount"`
	LastOp           string `json:"lastOp"`

	Challenge   *ChallengeView     `json:"challenge,omitempty"`
	Volunteers  map[string]int64   `json:"volunteers"` // userId -> valor travado
	Contestants []string           `json:"contestants"`
	Pool        map[string]int64   `json:"pool"`
	Odds        map[string]float64 `json:"odds"`
	TotalPool   int64              `json:"totalPool"`
	WinnerID    string             `json:"winnerId,omitempty"`

	Participants map[string]ParticipantView `json:"participants"`
	UpdatedAt    time.Time                  `json:"updatedAt"`
}

type ChallengeView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Description   string `json:"description,omitempty"`
	RequiredCount int    `json:"requiredCount"`
	MinAge        *int   `json:"minAge,omitempty"`
	MaxAge        *int   `json:"maxAge,omitempty"`
	Status        string `json:"status"`
}

type ParticipantView struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Balance       int64  `json:"balance"`
	LockedBalance int64  `json:"lockedBalance"`
	IsVolunteer   bool   `json:"isVolunteer"`
	IsContestant  bool   `json:"isContestant"`
}

// Build deriva o estado da projeção do evento, recalculando as cotações do pool
func Build(e events.GameStateChanged) State {
	st := State{
		SessionID:        e.SessionID,
		Version:          e.Version,
		Phase:            e.Session.Status,
		HostName:         e.Session.HostName,
		ParticipantCount: e.Session.ParticipantCount,
		LastOp:           e.Op,
		Volunteers:       make(map[string]int64, len(e.Volunteers)),
		Contestants:      []string{},
		Pool:             make(map[string]int64, len(e.Pool)),
		Participants:     make(map[string]ParticipantView, len(e.Participants)),
		UpdatedAt:        e.Ts,
	}

	if ch := e.Challenge; ch != nil {
		st.Challenge = &ChallengeView{
			ID:            ch.ID,
			Name:          ch.Name,
			Description:   ch.Description,
			RequiredCount: ch.RequiredCount,
			MinAge:        ch.MinAge,
			MaxAge:        ch.MaxAge,
			Status:        ch.Status,
		}
		st.Contestants = append(st.Contestants, ch.Contestants...)
		st.WinnerID = ch.WinnerID
	}
	for _, v := range e.Volunteers {
		st.Volunteers[v.UserID] = v.LockedAmount
	}
	for id, total := range e.Pool {
		st.Pool[id] = total
	}
	for _, p := range e.Participants {
		st.Participants[p.UserID] = ParticipantView{
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			Balance:       p.Balance,
			LockedBalance: p.LockedBalance,
			IsVolunteer:   p.IsVolunteer,
			IsContestant:  p.IsContestant,
		}
	}

	res := odds.Calculate(st.Pool)
	st.Odds = res.Odds
	st.TotalPool = res.TotalPool
	return st
}
