package game

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
)

const (
	codeAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength     = 6
	codeMaxRetries = 8
	maxAge         = 150
)

type CreateSessionResult struct {
	SessionID string
	HostID    string
}

type JoinInput struct {
	SessionID string
	UserID    string
	FirstName string
	LastName  string
	Age       int
}

type JoinResult struct {
	Participant domain.Participant
	IsReturning bool
}

func (c *Controller) newCode() string {
	var b strings.Builder
	for range codeLength {
		b.WriteByte(codeAlphabet[c.rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// CreateSession cria a sessão em OPEN com um código curto; colisões geram novo código
func (c *Controller) CreateSession(ctx context.Context, hostName string) (CreateSessionResult, error) {
	const op = "createSession"

	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		hostName = domain.DefaultHostName
	}
	hostID := "host_" + uuid.NewString()

	var err error
	for range codeMaxRetries {
		now := c.now()
		s := domain.Session{
			ID:        c.newCode(),
			HostID:    hostID,
			HostName:  hostName,
			Status:    domain.PhaseOpen,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = c.apply(ctx, op, s.ID, &hostID, func(tx ledger.Tx) error {
			return tx.CreateSession(ctx, s)
		})
		if errors.Is(err, ledger.ErrConflict) {
			continue
		}
		if err != nil {
			break
		}
		return CreateSessionResult{SessionID: s.ID, HostID: hostID},
			c.done(op, nil, zap.String("sessionId", s.ID))
	}
	if errors.Is(err, ledger.ErrConflict) {
		err = apperr.Internal("could not allocate session code", err)
	}
	return CreateSessionResult{}, c.done(op, err)
}

// JoinSession cria o participante com o saldo inicial; reentrada devolve o registro intacto
func (c *Controller) JoinSession(ctx context.Context, in JoinInput) (JoinResult, error) {
	const op = "joinSession"

	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := errors.Join(
		required("sessionId", in.SessionID),
		required("userId", in.UserID),
		required("firstName", in.FirstName),
		required("lastName", in.LastName),
	); err != nil {
		return JoinResult{}, c.done(op, firstErr(err))
	}
	if in.Age <= 0 || in.Age > maxAge {
		return JoinResult{}, c.done(op, apperr.InvalidArgument("age out of range"))
	}

	var res JoinResult
	err := c.apply(ctx, op, in.SessionID, &in.UserID, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, in.SessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}

		existing, err := tx.Participant(ctx, in.SessionID, in.UserID)
		if err == nil {
			res = JoinResult{Participant: existing, IsReturning: true}
			return errUnchanged
		}
		if !errors.Is(err, ledger.ErrNotFound) {
			return err
		}

		p := domain.Participant{
			SessionID: in.SessionID,
			UserID:    in.UserID,
			FirstName: in.FirstName,
			LastName:  in.LastName,
			Age:       in.Age,
			Balance:   c.startingBalance,
			JoinedAt:  c.now(),
		}
		inserted, err := tx.InsertParticipant(ctx, p)
		if err != nil {
			return err
		}
		if !inserted {
			// outra transação inseriu primeiro
			existing, err := loadParticipant(ctx, tx, in.SessionID, in.UserID)
			if err != nil {
				return err
			}
			res = JoinResult{Participant: existing, IsReturning: true}
			return errUnchanged
		}

		s.ParticipantCount++
		s.UpdatedAt = p.JoinedAt
		res = JoinResult{Participant: p}
		return tx.UpdateSession(ctx, s)
	})
	if err != nil {
		return JoinResult{}, c.done(op, err, zap.String("sessionId", in.SessionID))
	}
	return res, c.done(op, nil,
		zap.String("sessionId", in.SessionID),
		zap.String("userId", in.UserID),
		zap.Bool("returning", res.IsReturning))
}

// GetSession devolve nil quando a sessão não existe
func (c *Controller) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	s, err := c.store.Session(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// GetParticipant devolve nil quando o participante não existe
func (c *Controller) GetParticipant(ctx context.Context, sessionID, userID string) (*domain.Participant, error) {
	p, err := c.store.Participant(ctx, sessionID, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

// Snapshot lê o estado autoritativo atual da sessão
func (c *Controller) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	snap, err := c.store.Snapshot(ctx, sessionID)
	if errors.Is(err, ledger.ErrNotFound) {
		return snap, apperr.NotFound("session not found")
	}
	return snap, mapErr(err)
}

// firstErr extrai o primeiro erro de um errors.Join
func firstErr(err error) error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		if errs := j.Unwrap(); len(errs) > 0 {
			return errs[0]
		}
	}
	return err
}
