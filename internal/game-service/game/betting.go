package game

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/game-service/odds"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
)

type BetInput struct {
	SessionID    string
	UserID       string
	ContestantID string
	NewAmount    int64 // total desejado neste competidor, não um incremento
}

type BetResult struct {
	BetID           string
	OddsAtPlacement float64
	NewBalance      int64
	Amount          int64
	Status          domain.BetStatus
}

type OddsPreview struct {
	Current         odds.Result
	After           odds.Result
	Coefficient     float64
	PotentialPayout int64
}

// PlaceBet ajusta a aposta do participante no competidor para NewAmount.
// Só a diferença para o valor atual move saldo e pool; diferença zero é no-op.
func (c *Controller) PlaceBet(ctx context.Context, in BetInput) (BetResult, error) {
	const op = "placeBet"
	if err := errors.Join(
		required("sessionId", in.SessionID),
		required("userId", in.UserID),
		required("contestantId", in.ContestantID),
	); err != nil {
		return BetResult{}, c.done(op, firstErr(err))
	}
	if in.NewAmount < 0 {
		return BetResult{}, c.done(op, apperr.InvalidArgument("amount must not be negative"))
	}

	var res BetResult
	var moved int64
	err := c.apply(ctx, op, in.SessionID, &in.UserID, func(tx ledger.Tx) error {
		// lock compartilhado: apostas correm em paralelo, transições de fase esperam
		s, err := loadSession(ctx, tx, in.SessionID, ledger.LockShare)
		if err != nil {
			return err
		}
		if err := requirePhase(s, domain.PhaseBetting); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		if !ch.HasContestant(in.ContestantID) {
			return apperr.InvalidArgument("contestant is not part of the challenge")
		}

		// a linha do participante serializa apostas do mesmo usuário
		p, err := loadParticipant(ctx, tx, in.SessionID, in.UserID)
		if err != nil {
			return err
		}
		if p.IsContestant || ch.HasContestant(in.UserID) {
			return apperr.FailedPrecondition("contestants cannot place bets")
		}

		now := c.now()
		bet, err := tx.Bet(ctx, in.SessionID, ch.ID, in.UserID, in.ContestantID)
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			bet = domain.Bet{
				ID:           domain.BetID(ch.ID, in.UserID, in.ContestantID),
				SessionID:    in.SessionID,
				ChallengeID:  ch.ID,
				UserID:       in.UserID,
				ContestantID: in.ContestantID,
				Status:       domain.BetRefunded,
				PlacedAt:     now,
			}
		case err != nil:
			return err
		}

		var current int64
		if bet.Status == domain.BetPending {
			current = bet.Amount
		}
		diff := in.NewAmount - current
		if diff == 0 {
			res = BetResult{
				BetID:           bet.ID,
				OddsAtPlacement: bet.OddsAtPlacement,
				NewBalance:      p.Balance,
				Amount:          current,
				Status:          bet.Status,
			}
			return errUnchanged
		}
		if diff > 0 && p.Balance < diff {
			return apperr.FailedPrecondition("insufficient balance")
		}

		updated, err := tx.ApplyDelta(ctx, in.SessionID, in.UserID, domain.ParticipantDelta{Balance: -diff})
		if err != nil {
			return err
		}
		if _, err := tx.AddPool(ctx, in.SessionID, ch.ID, in.ContestantID, diff); err != nil {
			return err
		}
		pool, err := tx.Pool(ctx, in.SessionID, ch.ID)
		if err != nil {
			return err
		}

		bet.Amount = in.NewAmount
		bet.Status = domain.BetPending
		if in.NewAmount == 0 {
			bet.Status = domain.BetRefunded
		}
		bet.OddsAtPlacement = odds.Calculate(pool).Odds[in.ContestantID]
		bet.UpdatedAt = now
		if err := tx.SaveBet(ctx, bet); err != nil {
			return err
		}

		moved = diff
		res = BetResult{
			BetID:           bet.ID,
			OddsAtPlacement: bet.OddsAtPlacement,
			NewBalance:      updated.Balance,
			Amount:          bet.Amount,
			Status:          bet.Status,
		}
		return nil
	})
	if err != nil {
		return BetResult{}, c.done(op, err, zap.String("sessionId", in.SessionID), zap.String("userId", in.UserID))
	}
	if moved != 0 && c.metrics != nil {
		c.metrics.Bets.Inc()
	}
	return res, c.done(op, nil,
		zap.String("sessionId", in.SessionID),
		zap.String("userId", in.UserID),
		zap.String("contestantId", in.ContestantID),
		zap.Int64("amount", res.Amount),
		zap.Int64("diff", moved))
}

// CloseBetting encerra as apostas; repetir em IN_PROGRESS não tem efeito
func (c *Controller) CloseBetting(ctx context.Context, sessionID string) error {
	const op = "closeBetting"
	if err := required("sessionId", sessionID); err != nil {
		return c.done(op, err)
	}

	var actor string
	err := c.apply(ctx, op, sessionID, &actor, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, sessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}
		actor = s.HostID
		if s.Status == domain.PhaseInProgress {
			return errUnchanged
		}
		if err := requirePhase(s, domain.PhaseBetting); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseInProgress)
	})
	return c.done(op, err, zap.String("sessionId", sessionID))
}

// PreviewOdds calcula as cotações e o prêmio potencial de uma aposta
// hipotética sobre o pool do ledger, sem alterá-lo
func (c *Controller) PreviewOdds(ctx context.Context, sessionID, contestantID string, amount int64) (OddsPreview, error) {
	if err := errors.Join(required("sessionId", sessionID), required("contestantId", contestantID)); err != nil {
		return OddsPreview{}, firstErr(err)
	}
	if amount < 0 {
		return OddsPreview{}, apperr.InvalidArgument("amount must not be negative")
	}

	snap, err := c.Snapshot(ctx, sessionID)
	if err != nil {
		return OddsPreview{}, err
	}
	if snap.Challenge == nil {
		return OddsPreview{}, apperr.FailedPrecondition("no active challenge")
	}
	if !snap.Challenge.HasContestant(contestantID) {
		return OddsPreview{}, apperr.InvalidArgument("contestant is not part of the challenge")
	}

	after := odds.AfterBet(snap.Pool, contestantID, amount)
	coef := after.Odds[contestantID]
	return OddsPreview{
		Current:         odds.Calculate(snap.Pool),
		After:           after,
		Coefficient:     coef,
		PotentialPayout: odds.PotentialPayout(amount, coef),
	}, nil
}
