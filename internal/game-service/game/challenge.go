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
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
)

type ChallengeInput struct {
	SessionID     string
	Name          string
	Description   string
	RequiredCount int
	MinAge        *int
	MaxAge        *int
}

type SelectInput struct {
	SessionID   string
	Mode        domain.SelectionMode
	SelectedIDs []string // MANUAL
	Count       int      // RANDOM; 0 usa o mínimo
}

type SelectResult struct {
	Contestants   []string
	RefundedCount int
}

func validateChallenge(in ChallengeInput) error {
	if err := required("sessionId", in.SessionID); err != nil {
		return err
	}
	if strings.TrimSpace(in.Name) == "" {
		return apperr.InvalidArgument("name is required")
	}
	if in.RequiredCount < domain.MinContestants || in.RequiredCount > domain.MaxContestants {
		return apperr.InvalidArgument("requiredCount must be between 2 and 10")
	}
	if (in.MinAge != nil && *in.MinAge < 0) || (in.MaxAge != nil && *in.MaxAge < 0) {
		return apperr.InvalidArgument("age bounds must not be negative")
	}
	if in.MinAge != nil && in.MaxAge != nil && *in.MinAge > *in.MaxAge {
		return apperr.InvalidArgument("minAge greater than maxAge")
	}
	return nil
}

// CreateChallenge abre uma rodada a partir de OPEN ou RESOLVED e passa para VOLUNTEERING
func (c *Controller) CreateChallenge(ctx context.Context, in ChallengeInput) (string, error) {
	const op = "createChallenge"
	if err := validateChallenge(in); err != nil {
		return "", c.done(op, err)
	}

	var actor string
	ch := domain.Challenge{
		ID:            uuid.NewString(),
		SessionID:     in.SessionID,
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		RequiredCount: in.RequiredCount,
		MinAge:        in.MinAge,
		MaxAge:        in.MaxAge,
		Status:        domain.PhaseVolunteering,
		Contestants:   []string{},
	}
	err := c.apply(ctx, op, in.SessionID, &actor, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, in.SessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}
		actor = s.HostID
		if err := requirePhase(s, domain.PhaseOpen, domain.PhaseResolved); err != nil {
			return err
		}

		if s.Status == domain.PhaseResolved {
			// limpa papéis que sobraram da rodada anterior
			ps, err := tx.Participants(ctx, s.ID)
			if err != nil {
				return err
			}
			for _, p := range ps {
				if err := release(ctx, tx, p); err != nil {
					return err
				}
			}
		}

		ch.CreatedAt = c.now()
		if err := tx.SaveChallenge(ctx, ch); err != nil {
			return err
		}
		s.CurrentChallengeID = ch.ID
		return c.setPhase(ctx, tx, s, nil, domain.PhaseVolunteering)
	})
	if err != nil {
		return "", c.done(op, err, zap.String("sessionId", in.SessionID))
	}
	return ch.ID, c.done(op, nil, zap.String("sessionId", in.SessionID), zap.String("challengeId", ch.ID))
}

// CloseVolunteering encerra as inscrições: VOLUNTEERING -> SELECTION
func (c *Controller) CloseVolunteering(ctx context.Context, sessionID string) error {
	const op = "closeVolunteering"
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
		if err := requirePhase(s, domain.PhaseVolunteering); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseSelection)
	})
	return c.done(op, err, zap.String("sessionId", sessionID))
}

// Volunteer trava todo o saldo do participante como aposta de competidor
func (c *Controller) Volunteer(ctx context.Context, sessionID, userID string) (int64, error) {
	return c.volunteer(ctx, "volunteer", sessionID, userID, domain.PhaseVolunteering)
}

// AdminMakeVolunteer faz o mesmo por iniciativa do host, também durante SELECTION
func (c *Controller) AdminMakeVolunteer(ctx context.Context, sessionID, userID string) (int64, error) {
	return c.volunteer(ctx, "adminMakeVolunteer", sessionID, userID, domain.PhaseVolunteering, domain.PhaseSelection)
}

func (c *Controller) volunteer(ctx context.Context, op, sessionID, userID string, phases ...domain.Phase) (int64, error) {
	if err := errors.Join(required("sessionId", sessionID), required("userId", userID)); err != nil {
		return 0, c.done(op, firstErr(err))
	}

	var locked int64
	err := c.apply(ctx, op, sessionID, &userID, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, sessionID, ledger.LockShare)
		if err != nil {
			return err
		}
		if err := requirePhase(s, phases...); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		p, err := loadParticipant(ctx, tx, sessionID, userID)
		if err != nil {
			return err
		}

		switch {
		case p.IsContestant:
			return apperr.FailedPrecondition("participant is already a contestant")
		case p.IsVolunteer:
			return apperr.FailedPrecondition("participant already volunteered")
		case !ch.AgeEligible(p.Age):
			return apperr.FailedPrecondition("participant age outside challenge range")
		case p.Balance <= 0:
			return apperr.FailedPrecondition("balance must be positive to volunteer")
		}

		locked = p.Balance
		if _, err := tx.ApplyDelta(ctx, sessionID, userID, domain.ParticipantDelta{
			Balance:     -locked,
			Locked:      locked,
			IsVolunteer: domain.Flag(true),
		}); err != nil {
			return err
		}
		err = tx.AddVolunteer(ctx, domain.VolunteerEntry{
			SessionID:     sessionID,
			ChallengeID:   ch.ID,
			UserID:        userID,
			LockedAmount:  locked,
			VolunteeredAt: c.now(),
		})
		if errors.Is(err, ledger.ErrConflict) {
			return apperr.FailedPrecondition("participant already volunteered")
		}
		return err
	})
	if err != nil {
		return 0, c.done(op, err, zap.String("sessionId", sessionID), zap.String("userId", userID))
	}
	return locked, c.done(op, nil,
		zap.String("sessionId", sessionID),
		zap.String("userId", userID),
		zap.Int64("locked", locked))
}

// AddContestant promove um voluntário (informado ou sorteado) a competidor
// e avança a sessão para SELECTION
func (c *Controller) AddContestant(ctx context.Context, sessionID, userID string) (string, error) {
	const op = "addContestant"
	if err := required("sessionId", sessionID); err != nil {
		return "", c.done(op, err)
	}

	var actor, chosen string
	err := c.apply(ctx, op, sessionID, &actor, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, sessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}
		actor = s.HostID
		if err := requirePhase(s, domain.PhaseVolunteering, domain.PhaseSelection); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		if len(ch.Contestants) >= domain.MaxContestants {
			return apperr.FailedPrecondition("contestant limit reached")
		}

		vs, err := tx.Volunteers(ctx, sessionID, ch.ID)
		if err != nil {
			return err
		}
		var candidates []string
		for _, v := range vs {
			if !ch.HasContestant(v.UserID) {
				candidates = append(candidates, v.UserID)
			}
		}

		switch {
		case userID == "":
			if len(candidates) == 0 {
				return apperr.FailedPrecondition("no eligible volunteers")
			}
			chosen = candidates[c.rand.IntN(len(candidates))]
		case ch.HasContestant(userID):
			return apperr.FailedPrecondition("participant is already a contestant")
		case !contains(candidates, userID):
			return apperr.FailedPrecondition("participant is not a volunteer")
		default:
			chosen = userID
		}

		if _, err := tx.ApplyDelta(ctx, sessionID, chosen, domain.ParticipantDelta{
			IsContestant: domain.Flag(true),
		}); err != nil {
			return err
		}
		if err := tx.OpenPool(ctx, sessionID, ch.ID, chosen); err != nil {
			return err
		}
		ch.Contestants = append(ch.Contestants, chosen)
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseSelection)
	})
	if err != nil {
		return "", c.done(op, err, zap.String("sessionId", sessionID))
	}
	return chosen, c.done(op, nil, zap.String("sessionId", sessionID), zap.String("userId", chosen))
}

func (c *Controller) pickContestants(in SelectInput, volunteers []string) ([]string, error) {
	switch in.Mode {
	case domain.SelectionManual:
		seen := make(map[string]bool, len(in.SelectedIDs))
		var out []string
		for _, id := range in.SelectedIDs {
			if seen[id] {
				continue
			}
			if !contains(volunteers, id) {
				return nil, apperr.InvalidArgument("selected participant is not a volunteer: " + id)
			}
			seen[id] = true
			out = append(out, id)
		}
		if len(out) < domain.MinContestants || len(out) > domain.MaxContestants {
			return nil, apperr.InvalidArgument("select between 2 and 10 contestants")
		}
		return out, nil

	case domain.SelectionRandom:
		count := in.Count
		if count == 0 {
			count = domain.MinContestants
		}
		if count < domain.MinContestants || count > domain.MaxContestants {
			return nil, apperr.InvalidArgument("count must be between 2 and 10")
		}
		if count > len(volunteers) {
			return nil, apperr.FailedPrecondition("not enough volunteers")
		}
		return randutil.Shuffle(c.rand, volunteers)[:count], nil

	default:
		return nil, apperr.InvalidArgument("mode must be MANUAL or RANDOM")
	}
}

// SelectContestants define o conjunto de competidores; voluntários não
// escolhidos são reembolsados e o pool é zerado para os escolhidos
func (c *Controller) SelectContestants(ctx context.Context, in SelectInput) (SelectResult, error) {
	const op = "selectContestants"
	if err := required("sessionId", in.SessionID); err != nil {
		return SelectResult{}, c.done(op, err)
	}

	var actor string
	var res SelectResult
	err := c.apply(ctx, op, in.SessionID, &actor, func(tx ledger.Tx) error {
		s, err := loadSession(ctx, tx, in.SessionID, ledger.LockExclusive)
		if err != nil {
			return err
		}
		actor = s.HostID
		if err := requirePhase(s, domain.PhaseSelection); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		vs, err := tx.Volunteers(ctx, s.ID, ch.ID)
		if err != nil {
			return err
		}
		ids := make([]string, 0, len(vs))
		for _, v := range vs {
			ids = append(ids, v.UserID)
		}

		selected, err := c.pickContestants(in, ids)
		if err != nil {
			return err
		}

		for _, v := range vs {
			if contains(selected, v.UserID) {
				if _, err := tx.ApplyDelta(ctx, s.ID, v.UserID, domain.ParticipantDelta{
					IsContestant: domain.Flag(true),
				}); err != nil {
					return err
				}
				continue
			}
			if err := refundVolunteer(ctx, tx, v); err != nil {
				return err
			}
			res.RefundedCount++
		}

		if err := tx.ResetPool(ctx, s.ID, ch.ID, selected); err != nil {
			return err
		}
		ch.Contestants = selected
		res.Contestants = selected
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseSelection)
	})
	if err != nil {
		return SelectResult{}, c.done(op, err, zap.String("sessionId", in.SessionID))
	}
	return res, c.done(op, nil,
		zap.String("sessionId", in.SessionID),
		zap.Strings("contestants", res.Contestants),
		zap.Int("refunded", res.RefundedCount))
}

// StartBettingPhase abre as apostas; voluntários que não viraram competidores
// são reembolsados
func (c *Controller) StartBettingPhase(ctx context.Context, sessionID string) error {
	const op = "startBettingPhase"
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
		if err := requirePhase(s, domain.PhaseSelection); err != nil {
			return err
		}
		ch, err := loadChallenge(ctx, tx, s)
		if err != nil {
			return err
		}
		if len(ch.Contestants) < domain.MinContestants {
			return apperr.FailedPrecondition("at least 2 contestants are required")
		}

		vs, err := tx.Volunteers(ctx, s.ID, ch.ID)
		if err != nil {
			return err
		}
		for _, v := range vs {
			if ch.HasContestant(v.UserID) {
				continue
			}
			if err := refundVolunteer(ctx, tx, v); err != nil {
				return err
			}
		}
		for _, id := range ch.Contestants {
			if err := tx.OpenPool(ctx, s.ID, ch.ID, id); err != nil {
				return err
			}
		}
		return c.setPhase(ctx, tx, s, &ch, domain.PhaseBetting)
	})
	return c.done(op, err, zap.String("sessionId", sessionID))
}

// refundVolunteer devolve o valor travado e remove a inscrição
func refundVolunteer(ctx context.Context, tx ledger.Tx, v domain.VolunteerEntry) error {
	if _, err := tx.ApplyDelta(ctx, v.SessionID, v.UserID, domain.ParticipantDelta{
		Balance:      v.LockedAmount,
		Locked:       -v.LockedAmount,
		IsVolunteer:  domain.Flag(false),
		IsContestant: domain.Flag(false),
	}); err != nil {
		return err
	}
	return tx.RemoveVolunteer(ctx, v.SessionID, v.ChallengeID, v.UserID)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
