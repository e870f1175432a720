package game

import (
	"time"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

// SnapshotEvent converte o snapshot do ledger no contrato publicado
func SnapshotEvent(snap domain.Snapshot, op, actor string, ts time.Time) events.GameStateChanged {
	s := snap.Session
	e := events.GameStateChanged{
		SessionID: s.ID,
		Version:   s.Version,
		Op:        op,
		Actor:     actor,
		Ts:        ts.UTC(),
		Session: events.SessionState{
			ID:                 s.ID,
			HostID:             s.HostID,
			HostName:           s.HostName,
			Status:             string(s.Status),
			CurrentChallengeID: s.CurrentChallengeID,
			ParticipantCount:   s.ParticipantCount,
		},
		Participants: make([]events.ParticipantState, 0, len(snap.Participants)),
		Volunteers:   make([]events.VolunteerState, 0, len(snap.Volunteers)),
		Pool:         make(map[string]int64, len(snap.Pool)),
	}

	if ch := snap.Challenge; ch != nil {
		e.Challenge = &events.ChallengeState{
			ID:            ch.ID,
			Name:          ch.Name,
			Description:   ch.Description,
			RequiredCount: ch.RequiredCount,
			MinAge:        ch.MinAge,
			MaxAge:        ch.MaxAge,
			Status:        string(ch.Status),
			Contestants:   append([]string{}, ch.Contestants...),
			WinnerID:      ch.WinnerID,
		}
	}
	for _, p := range snap.Participants {
		e.Participants = append(e.Participants, events.ParticipantState{
			UserID:        p.UserID,
			FirstName:     p.FirstName,
			LastName:      p.LastName,
			Age:           p.Age,
			Balance:       p.Balance,
			LockedBalance: p.LockedBalance,
			IsVolunteer:   p.IsVolunteer,
			IsContestant:  p.IsContestant,
		})
	}
	for _, v := range snap.Volunteers {
		e.Volunteers = append(e.Volunteers, events.VolunteerState{
			UserID:        v.UserID,
			LockedAmount:  v.LockedAmount,
			VolunteeredAt: v.VolunteeredAt.UTC(),
		})
	}
	for id, total := range snap.Pool {
		e.Pool[id] = total
	}
	return e
}
