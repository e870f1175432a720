package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
)

func TestResolveChallengePaysFromFinalPool(t *testing.T) {
	f := newFixture(t)
	f.betting(t, []string{"a", "b"}, "carol", "dave", "eve")

	f.bet(t, "carol", "a", 50)
	f.bet(t, "dave", "a", 30)
	f.bet(t, "eve", "b", 20)
	require.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))

	_, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "carol")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	res, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.25, res.WinningCoefficient)
	assert.Equal(t, int64(62+37), res.TotalPayouts)
	assert.Equal(t, 2, res.WinnersCount)
	assert.Equal(t, int64(2000), res.ContestantReward)

	assert.Equal(t, int64(950+62), f.participant(t, "carol").Balance)
	assert.Equal(t, int64(970+37), f.participant(t, "dave").Balance)
	assert.Equal(t, int64(980), f.participant(t, "eve").Balance)

	a := f.participant(t, "a")
	assert.Equal(t, int64(2000), a.Balance)
	assert.Zero(t, a.LockedBalance)
	assert.False(t, a.IsContestant)
	assert.False(t, a.IsVolunteer)

	b := f.participant(t, "b")
	assert.Zero(t, b.Balance)
	assert.Zero(t, b.LockedBalance)
	assert.False(t, b.IsContestant)

	assert.Equal(t, domain.PhaseResolved, f.phase(t))
	ev := f.pub.last()
	assert.Equal(t, "resolveChallenge", ev.Op)
	require.NotNil(t, ev.Challenge)
	assert.Equal(t, "a", ev.Challenge.WinnerID)
	assert.Equal(t, "RESOLVED", ev.Challenge.Status)

	err = f.store.InTx(f.ctx, func(tx ledger.Tx) error {
		for user, want := range map[string]domain.BetStatus{"carol": domain.BetWon, "dave": domain.BetWon} {
			bet, err := tx.Bet(f.ctx, f.sid, ev.Challenge.ID, user, "a")
			require.NoError(t, err)
			assert.Equal(t, want, bet.Status)
			assert.NotNil(t, bet.ResolvedAt)
		}
		bet, err := tx.Bet(f.ctx, f.sid, ev.Challenge.ID, "eve", "b")
		require.NoError(t, err)
		assert.Equal(t, domain.BetLost, bet.Status)
		assert.Zero(t, bet.Payout)
		pending, err := tx.PendingBets(f.ctx, f.sid, ev.Challenge.ID)
		require.NoError(t, err)
		assert.Empty(t, pending)
		return nil
	})
	require.NoError(t, err)

	_, err = f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition, "already resolved")
}

func TestResolveRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	f.betting(t, []string{"a", "b"})

	_, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
	_, err = f.ctl.ResolveChallenge(f.ctx, f.sid, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestResolveWithEmptyPool(t *testing.T) {
	f := newFixture(t)
	f.betting(t, []string{"a", "b"})
	require.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))

	res, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "b")
	require.NoError(t, err)
	assert.Zero(t, res.WinningCoefficient)
	assert.Zero(t, res.TotalPayouts)
	assert.Equal(t, int64(2000), f.participant(t, "b").Balance)
}

func TestNextRoundAfterResolution(t *testing.T) {
	f := newFixture(t)
	f.betting(t, []string{"a", "b"}, "u")
	require.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))
	_, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	require.NoError(t, err)

	_, err = f.ctl.CreateChallenge(f.ctx, ChallengeInput{SessionID: f.sid, Name: "Round 2", RequiredCount: 2})
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseVolunteering, f.phase(t))

	_, err = f.ctl.Volunteer(f.ctx, f.sid, "b")
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition, "b lost everything")

	locked, err := f.ctl.Volunteer(f.ctx, f.sid, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), locked)
}

func TestCancelChallengeRefundsEverything(t *testing.T) {
	f := newFixture(t)
	f.betting(t, []string{"a", "b"}, "u", "v")
	f.bet(t, "u", "a", 300)
	f.bet(t, "v", "b", 1000)
	f.bet(t, "v", "b", 400)

	require.NoError(t, f.ctl.CancelChallenge(f.ctx, f.sid))

	for _, id := range []string{"a", "b", "u", "v"} {
		p := f.participant(t, id)
		assert.Equal(t, int64(1000), p.Balance, id)
		assert.Zero(t, p.LockedBalance, id)
		assert.False(t, p.IsVolunteer, id)
		assert.False(t, p.IsContestant, id)
	}

	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, s.Status)
	assert.Empty(t, s.CurrentChallengeID)

	ev := f.pub.last()
	assert.Nil(t, ev.Challenge)
	assert.Empty(t, ev.Pool)

	assert.ErrorIs(t, f.ctl.CancelChallenge(f.ctx, f.sid), apperr.ErrFailedPrecondition)
}

func TestCancelFromEveryActivePhase(t *testing.T) {
	advance := []func(f *fixture) error{
		func(f *fixture) error { return nil }, // VOLUNTEERING
		func(f *fixture) error { return f.ctl.CloseVolunteering(f.ctx, f.sid) },
		func(f *fixture) error {
			_, err := f.ctl.SelectContestants(f.ctx, SelectInput{SessionID: f.sid, Mode: domain.SelectionManual, SelectedIDs: []string{"a", "b"}})
			if err != nil {
				return err
			}
			return f.ctl.StartBettingPhase(f.ctx, f.sid)
		},
		func(f *fixture) error { return f.ctl.CloseBetting(f.ctx, f.sid) },
	}
	for n := 1; n <= len(advance); n++ {
		t.Run(fmt.Sprintf("steps=%d", n), func(t *testing.T) {
			f := newFixture(t)
			f.join(t, "a", "b")
			_, err := f.ctl.CreateChallenge(f.ctx, ChallengeInput{SessionID: f.sid, Name: "x", RequiredCount: 2})
			require.NoError(t, err)
			for _, id := range []string{"a", "b"} {
				_, err := f.ctl.Volunteer(f.ctx, f.sid, id)
				require.NoError(t, err)
			}
			for _, step := range advance[:n] {
				require.NoError(t, step(f))
			}

			require.NoError(t, f.ctl.CancelChallenge(f.ctx, f.sid))
			assert.Equal(t, domain.PhaseOpen, f.phase(t))
			assert.Equal(t, int64(1000), f.participant(t, "a").Balance)
			checkLedger(t, f.store, f.sid, 2000)
		})
	}
}

func TestResetSession(t *testing.T) {
	f := newFixture(t)

	before := len(f.pub.all())
	require.NoError(t, f.ctl.ResetSession(f.ctx, f.sid), "no-op from OPEN")
	assert.Len(t, f.pub.all(), before)

	f.betting(t, []string{"a", "b"}, "u")
	assert.ErrorIs(t, f.ctl.ResetSession(f.ctx, f.sid), apperr.ErrFailedPrecondition)

	f.bet(t, "u", "b", 100)
	require.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))
	_, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "b")
	require.NoError(t, err)

	require.NoError(t, f.ctl.ResetSession(f.ctx, f.sid))
	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseOpen, s.Status)
	assert.Empty(t, s.CurrentChallengeID)

	// saldos preservados
	assert.Equal(t, int64(2000), f.participant(t, "b").Balance)
	assert.Equal(t, int64(900+101), f.participant(t, "u").Balance)
	assert.Nil(t, f.pub.last().Challenge)
}

// faultyStore injeta falha numa escrita específica da transação
type faultyStore struct {
	*ledger.Memory
	failSaveChallenge bool
}

type faultyTx struct {
	ledger.Tx
	s *faultyStore
}

func (s *faultyStore) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.Memory.InTx(ctx, func(tx ledger.Tx) error {
		return fn(&faultyTx{Tx: tx, s: s})
	})
}

func (t *faultyTx) SaveChallenge(ctx context.Context, c domain.Challenge) error {
	if t.s.failSaveChallenge {
		return errors.New("disk full")
	}
	return t.Tx.SaveChallenge(ctx, c)
}

func TestResolutionFailureRollsBackEveryPayout(t *testing.T) {
	store := &faultyStore{Memory: ledger.NewMemory()}
	f := newFixture(t)
	f.store = store.Memory
	f.ctl = New(store, WithPublisher(f.pub), WithClock(stepClock()))
	res, err := f.ctl.CreateSession(f.ctx, "")
	require.NoError(t, err)
	f.sid = res.SessionID

	f.betting(t, []string{"a", "b"}, "u", "v")
	f.bet(t, "u", "a", 100)
	f.bet(t, "v", "a", 200)
	require.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))

	store.failSaveChallenge = true
	_, err = f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	assert.ErrorIs(t, err, apperr.ErrInternal)

	assert.Equal(t, domain.PhaseInProgress, f.phase(t))
	assert.Equal(t, int64(900), f.participant(t, "u").Balance)
	assert.Equal(t, int64(800), f.participant(t, "v").Balance)
	assert.Equal(t, int64(1000), f.participant(t, "a").LockedBalance)

	snap, err := store.Snapshot(f.ctx, f.sid)
	require.NoError(t, err)
	err = store.InTx(f.ctx, func(tx ledger.Tx) error {
		pending, err := tx.PendingBets(f.ctx, f.sid, snap.Challenge.ID)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
		return nil
	})
	require.NoError(t, err)

	store.failSaveChallenge = false
	out, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	require.NoError(t, err)
	assert.Equal(t, 1.01, out.WinningCoefficient)
	assert.Equal(t, int64(101+202), out.TotalPayouts)
}

func TestConcurrentBetsConserveMoney(t *testing.T) {
	f := newFixture(t)
	bettors := []string{"u1", "u2", "u3", "u4", "u5"}
	f.betting(t, []string{"a", "b", "c"}, bettors...)

	var wg sync.WaitGroup
	for i, u := range bettors {
		for k := range 20 {
			wg.Add(1)
			go func(u string, k int) {
				defer wg.Done()
				contestant := []string{"a", "b", "c"}[(i+k)%3]
				// erros de saldo são esperados; o ledger nunca pode ficar inconsistente
				_, _ = f.ctl.PlaceBet(f.ctx, BetInput{SessionID: f.sid, UserID: u, ContestantID: contestant, NewAmount: int64(50 * (k%5 + 1))})
			}(u, k)
		}
	}
	wg.Wait()

	checkLedger(t, f.store, f.sid, 8000)
	assertPoolMatchesPendingBets(t, f)
}

func TestConcurrentCloseBettingAndBets(t *testing.T) {
	f := newFixture(t)
	bettors := []string{"u1", "u2", "u3", "u4"}
	f.betting(t, []string{"a", "b"}, bettors...)

	var wg sync.WaitGroup
	for _, u := range bettors {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			for amount := int64(10); amount <= 100; amount += 10 {
				_, err := f.ctl.PlaceBet(f.ctx, BetInput{SessionID: f.sid, UserID: u, ContestantID: "a", NewAmount: amount})
				if err != nil {
					assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
					return
				}
			}
		}(u)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, f.ctl.CloseBetting(f.ctx, f.sid))
	}()
	wg.Wait()

	assert.Equal(t, domain.PhaseInProgress, f.phase(t))
	checkLedger(t, f.store, f.sid, 6000)
	assertPoolMatchesPendingBets(t, f)

	res, err := f.ctl.ResolveChallenge(f.ctx, f.sid, "a")
	require.NoError(t, err)
	// apostas só no vencedor: cotação mínima
	if res.TotalPayouts > 0 {
		assert.Equal(t, 1.01, res.WinningCoefficient)
	}
}

func TestConcurrentJoinsAreIdempotent(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: "same", FirstName: "S", LastName: "T", Age: 20})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ParticipantCount)
	assert.Equal(t, int64(1000), f.participant(t, "same").Balance)
}

func assertPoolMatchesPendingBets(t *testing.T, f *fixture) {
	t.Helper()
	snap, err := f.store.Snapshot(f.ctx, f.sid)
	require.NoError(t, err)
	err = f.store.InTx(f.ctx, func(tx ledger.Tx) error {
		pending, err := tx.PendingBets(f.ctx, f.sid, snap.Challenge.ID)
		require.NoError(t, err)
		sums := map[string]int64{}
		for _, b := range pending {
			sums[b.ContestantID] += b.Amount
		}
		for id, total := range snap.Pool {
			assert.Equal(t, total, sums[id], "pool of %s", id)
		}
		return nil
	})
	require.NoError(t, err)
}
