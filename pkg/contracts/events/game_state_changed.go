package events

import "time"

// GameStateChanged é publicado no tópico "game_events" após cada commit no ledger.
// Carrega o snapshot completo da sessão na versão indicada; consumidores
// descartam versões menores ou iguais à já aplicada.
type GameStateChanged struct {
	SessionID string    `json:"session_id"`
	Version   int64     `json:"version"`
	Op        string    `json:"op"`              // ex: "placeBet", "resolveChallenge"
	Actor     string    `json:"actor,omitempty"` // userId ou hostId
	Ts        time.Time `json:"ts"`

	Session      SessionState       `json:"session"`
	Challenge    *ChallengeState    `json:"challenge,omitempty"`
	Participants []ParticipantState `json:"participants"`
	Volunteers   []VolunteerState   `json:"volunteers"`
	Pool         map[string]int64   `json:"pool"`
}

type SessionState struct {
	ID                 string `json:"id"`
	HostID             string `json:"host_id"`
	HostName           string `json:"host_name"`
	Status             string `json:"status"`
	CurrentChallengeID string `json:"current_challenge_id,omitempty"`
	ParticipantCount   int    `json:"participant_count"`
}

type ChallengeState struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	RequiredCount int      `json:"required_count"`
	MinAge        *int     `json:"min_age,omitempty"`
	MaxAge        *int     `json:"max_age,omitempty"`
	Status        string   `json:"status"`
	Contestants   []string `json:"contestants"`
	WinnerID      string   `json:"winner_id,omitempty"`
}

type ParticipantState struct {
	UserID        string `json:"user_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Age           int    `json:"age"`
	Balance       int64  `json:"balance"`
	LockedBalance int64  `json:"locked_balance"`
	IsVolunteer   bool   `json:"is_volunteer"`
	IsContestant  bool   `json:"is_contestant"`
}

type VolunteerState struct {
	UserID        string    `json:"user_id"`
	LockedAmount  int64     `json:"locked_amount"`
	VolunteeredAt time.Time `json:"volunteered_at"`
}
