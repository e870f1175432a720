package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/game-service/odds"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
)

type ResolveResult struct {
	WinnerID           string
	WinningCoefficient float64
	TotalPayouts       int64 // soma paga aos apostadores vencedores
	WinnersCount       int   // apostadores distintos com aposta vencedora
	ContestantReward   int64
}

// ResolveChallenge declara o vencedor e liquida todas as apostas e travas numa
// única transação, usando as cotações do pool no momento da resolução
func (c *Controller) ResolveChallenge(ctx context.Context, sessionID, winnerID string) (ResolveResult, error) {
	const op = "resolveChallenge"
	if err := required("sessionId", sessionID); err != nil {
		return ResolveResult{}, c.done(op, err)
	}
	if err := required("winnerId", winnerID); err != nil {
		return ResolveResult{}, c.done(op, err)
	}

	var actor string
	var res ResolveResult
	err := c.apply(ctx, op, sessionID, &actor, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, sessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}
		actor = s.HostID
		if err := requirePhase(s, domain.PhaseInProgress); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		if !ch.HasContestant(winnerID) {
			return apperr.InvalidArgument("winner is not a contestant")
		}

		pool, err := tx.Pool(ctx, s.ID, ch.ID)
		if err != nil {
			return err
		}
		coef := odds.Calculate(pool).Odds[winnerID]
		res = ResolveResult{WinnerID: winnerID, WinningCoefficient: coef}

		now := c.now()
		bets, err := tx.PendingBets(ctx, s.ID, ch.ID)
		if err != nil {
			return err
		}
		winners := map[string]bool{}
		for _, b := range bets {
			b.Status = domain.BetLost
			b.Payout = 0
			if b.ContestantID == winnerID {
				b.Status = domain.BetWon
				b.Payout = odds.PotentialPayout(b.Amount, coef)
				if _, err := tx.ApplyDelta(ctx, s.ID, b.UserID, domain.ParticipantDelta{Balance: b.Payout}); err != nil {
					return err
				}
				res.TotalPayouts += b.Payout
				winners[b.UserID] = true
			}
			b.UpdatedAt = now
			b.ResolvedAt = &now
			if err := tx.SaveBet(ctx, b); err != nil {
				return err
			}
		}
		res.WinnersCount = len(winners)

		// competidores: o vencedor recebe o prêmio, os demais perdem o valor travado
		for _, id := range ch.Contestants {
			p, err := loadParticipant(ctx, tx, s.ID, id)
			if err != nil {
				return err
			}
			var reward int64
			if id == winnerID {
				reward = odds.VolunteerReward(p.LockedBalance, c.multiplier)
				res.ContestantReward = reward
			}
			if _, err := tx.ApplyDelta(ctx, s.ID, id, domain.ParticipantDelta{
				Balance:      reward,
				Locked:       -p.LockedBalance,
				IsVolunteer:  domain.Flag(false),
				IsContestant: domain.Flag(false),
			}); err != nil {
				return err
			}
		}

		ch.WinnerID = winnerID
		ch.ResolvedAt = &now
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseResolved)
	})
	if err != nil {
		return ResolveResult{}, c.done(op, err, zap.String("sessionId", sessionID))
	}
	if c.metrics != nil {
		c.metrics.Payouts.Add(float64(res.TotalPayouts))
	}
	return res, c.done(op, nil,
		zap.String("sessionId", sessionID),
		zap.String("winnerId", winnerID),
		zap.Float64("coefficient", res.WinningCoefficient),
		zap.Int64("payouts", res.TotalPayouts),
		zap.Int("winners", res.WinnersCount))
}

// CancelChallenge devolve apostas e travas, apaga o desafio e volta a sessão para OPEN
func (c *Controller) CancelChallenge(ctx context.Context, sessionID string) error {
	const op = "cancelChallenge"
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
		if !s.Status.Active() {
			return apperr.FailedPrecondition("no challenge in progress")
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}

		bets, err := tx.PendingBets(ctx, s.ID, ch.ID)
		if err != nil {
			return err
		}
		for _, b := range bets {
			if _, err := tx.ApplyDelta(ctx, s.ID, b.UserID, domain.ParticipantDelta{Balance: b.Amount}); err != nil {
				return err
			}
		}

		ps, err := tx.Participants(ctx, s.ID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			if err := release(ctx, tx, p); err != nil {
				return err
			}
		}

		if err := tx.DeleteChallenge(ctx, s.ID, ch.ID); err != nil {
			return err
		}
		s.CurrentChallengeID = ""
		return c.setPhase(ctx, tx, s, nil, domain.PhaseOpen)
	})
	return c.done(op, err, zap.String("sessionId", sessionID))
}

// ResetSession volta uma sessão resolvida para OPEN preservando os saldos
func (c *Controller) ResetSession(ctx context.Context, sessionID string) error {
	const op = "resetSession"
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
		if s.Status == domain.PhaseOpen {
			return errUnchanged
		}
		if s.Status != domain.PhaseResolved {
			return apperr.FailedPrecondition("challenge in progress; cancel it instead")
		}

		ps, err := tx.Participants(ctx, s.ID)
		if err != nil {
			return err
		}
		for _, p := range ps {
			if err := release(ctx, tx, p); err != nil {
				return err
			}
		}
		s.CurrentChallengeID = ""
		return c.setPhase(ctx, tx, s, nil, domain.PhaseOpen)
	})
	return c.done(op, err, zap.String("sessionId", sessionID))
}
