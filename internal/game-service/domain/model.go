// Package domain contém o modelo do ledger do jogo: sessões, desafios,
// participantes, voluntários e apostas.
package domain

import "time"

// Phase é o status do ciclo de vida da sessão (e, em parte, do desafio)
type Phase string

const (
	PhaseOpen         Phase = "OPEN"
	PhaseVolunteering Phase = "VOLUNTEERING"
	PhaseSelection    Phase = "SELECTION"
	PhaseBetting      Phase = "BETTING"
	PhaseInProgress   Phase = "IN_PROGRESS"
	PhaseResolved     Phase = "RESOLVED"
)

// Active indica fases com desafio em andamento (canceláveis)
func (p Phase) Active() bool {
	switch p {
	case PhaseVolunteering, PhaseSelection, PhaseBetting, PhaseInProgress:
		return true
	}
	return false
}

type BetStatus string

const (
	BetPending  BetStatus = "PENDING"
	BetWon      BetStatus = "WON"
	BetLost     BetStatus = "LOST"
	BetRefunded BetStatus = "REFUNDED"
)

type SelectionMode string

const (
	SelectionManual SelectionMode = "MANUAL"
	SelectionRandom SelectionMode = "RANDOM"
)

const (
	DefaultStartingBalance     int64 = 1000
	DefaultVolunteerMultiplier int64 = 2
	MinBetAmount               int64 = 1
	MinContestants                   = 2
	MaxContestants                   = 10
	DefaultHostName                  = "Anonymous Host"
)

type Session struct {
	ID                 string
	HostID             string
	HostName           string
	Status             Phase
	CurrentChallengeID string // vazio quando não há desafio ativo
	ParticipantCount   int
	Version            int64
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type Challenge struct {
	ID            string
	SessionID     string
	Name          string
	Description   string
	RequiredCount int
	MinAge        *int
	MaxAge        *int
	Status        Phase
	Contestants   []string
	WinnerID      string
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// HasContestant verifica se o usuário faz parte dos competidores
func (c Challenge) HasContestant(userID string) bool {
	for _, id := range c.Contestants {
		if id == userID {
			return true
		}
	}
	return false
}

// AgeEligible aplica a faixa etária configurada (limites inclusivos)
func (c Challenge) AgeEligible(age int) bool {
	if c.MinAge != nil && age < *c.MinAge {
		return false
	}
	if c.MaxAge != nil && age > *c.MaxAge {
		return false
	}
	return true
}

type Participant struct {
	SessionID     string
	UserID        string
	FirstName     string
	LastName      string
	Age           int
	Balance       int64
	LockedBalance int64
	IsVolunteer   bool
	IsContestant  bool
	JoinedAt      time.Time
}

// ParticipantDelta é a única forma de alterar a conta de um participante.
// Saldos são deltas relativos ao valor armazenado; flags nil não mudam.
type ParticipantDelta struct {
	Balance      int64
	Locked       int64
	IsVolunteer  *bool
	IsContestant *bool
}

// Apply devolve o participante com o delta aplicado, sem validar limites
func (p Participant) Apply(d ParticipantDelta) Participant {
	p.Balance += d.Balance
	p.LockedBalance += d.Locked
	if d.IsVolunteer != nil {
		p.IsVolunteer = *d.IsVolunteer
	}
	if d.IsContestant != nil {
		p.IsContestant = *d.IsContestant
	}
	return p
}

// Flag é um atalho para os campos *bool do delta
func Flag(v bool) *bool { return &v }

type VolunteerEntry struct {
	SessionID     string
	ChallengeID   string
	UserID        string
	LockedAmount  int64
	VolunteeredAt time.Time
}

type Bet struct {
	ID              string
	SessionID       string
	ChallengeID     string
	UserID          string
	ContestantID    string
	Amount          int64 // total atual apostado pelo usuário neste competidor
	OddsAtPlacement float64
	Status          BetStatus
	Payout          int64
	PlacedAt        time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// BetID é determinístico para que apostas repetidas façam upsert
func BetID(challengeID, userID, contestantID string) string {
	return challengeID + ":" + userID + ":" + contestantID
}

// Snapshot é o estado do ledger de uma sessão numa versão
type Snapshot struct {
	Session      Session
	Challenge    *Challenge
	Participants []Participant
	Volunteers   []VolunteerEntry
	Pool         map[string]int64
}
