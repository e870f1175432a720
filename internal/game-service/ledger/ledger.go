// Package ledger é o repositório autoritativo do jogo.
//
// Toda operação que move saldo roda dentro de Store.InTx e se expressa como
// deltas (ApplyDelta, AddPool) sobre o valor armazenado, nunca como
// "ler saldo, calcular, sobrescrever". A implementação Postgres serializa por
// locks de linha; a implementação em memória por um mutex global.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
)

// LockMode define o lock tomado na linha da sessão
type LockMode int

const (
	LockNone LockMode = iota
	// LockShare permite apostas concorrentes mas bloqueia transições de fase
	LockShare
	// LockExclusive serializa transições de fase da sessão
	LockExclusive
)

// Store é o ponto de entrada do ledger
type Store interface {
	// InTx executa fn numa transação; qualquer erro desfaz todas as escritas
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Session(ctx context.Context, id string) (domain.Session, error)
	Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error)
	Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error)
	// ActiveSessions lista sessões com desafio ativo ou alteradas desde since
	ActiveSessions(ctx context.Context, since time.Time) ([]string, error)
	Ping(ctx context.Context) error
}

// Tx são as operações disponíveis dentro de uma transação.
// Leituras de participantes, apostas e desafios travam as linhas lidas.
type Tx interface {
	CreateSession(ctx context.Context, s domain.Session) error
	Session(ctx context.Context, id string, lock LockMode) (domain.Session, error)
	UpdateSession(ctx context.Context, s domain.Session) error
	// BumpVersion incrementa a versão da sessão; deve ser a última escrita da transação
	BumpVersion(ctx context.Context, sessionID string) (int64, error)

	InsertParticipant(ctx context.Context, p domain.Participant) (bool, error)
	Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error)
	Participants(ctx context.Context, sessionID string) ([]domain.Participant, error)
	ApplyDelta(ctx context.Context, sessionID, userID string, d domain.ParticipantDelta) (domain.Participant, error)

	Challenge(ctx context.Context, sessionID, challengeID string) (domain.Challenge, error)
	SaveChallenge(ctx context.Context, c domain.Challenge) error
	DeleteChallenge(ctx context.Context, sessionID, challengeID string) error

	Volunteers(ctx context.Context, sessionID, challengeID string) ([]domain.VolunteerEntry, error)
	AddVolunteer(ctx context.Context, v domain.VolunteerEntry) error
	RemoveVolunteer(ctx context.Context, sessionID, challengeID, userID string) error

	Bet(ctx context.Context, sessionID, challengeID, userID, contestantID string) (domain.Bet, error)
	SaveBet(ctx context.Context, b domain.Bet) error
	PendingBets(ctx context.Context, sessionID, challengeID string) ([]domain.Bet, error)

	ResetPool(ctx context.Context, sessionID, challengeID string, contestants []string) error
	OpenPool(ctx context.Context, sessionID, challengeID, contestantID string) error
	AddPool(ctx context.Context, sessionID, challengeID, contestantID string, delta int64) (int64, error)
	Pool(ctx context.Context, sessionID, challengeID string) (map[string]int64, error)

	Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error)
}
