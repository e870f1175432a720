package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
	"github.com/radieske/party-bet-platform/internal/shared/metrics"
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.GameStateChanged
	fail   error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.GameStateChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) all() []events.GameStateChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.GameStateChanged(nil), p.events...)
}

func (p *recordingPublisher) last() events.GameStateChanged {
	all := p.all()
	return all[len(all)-1]
}

type fixture struct {
	ctx   context.Context
	store *ledger.Memory
	pub   *recordingPublisher
	ctl   *Controller
	sid   string
}

func stepClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: ledger.NewMemory(),
		pub:   &recordingPublisher{},
	}
	base := []Option{
		WithPublisher(f.pub),
		WithRand(randutil.New(42)),
		WithClock(stepClock()),
		WithPublishRetry(2, func() backoff.BackOff { return &backoff.ZeroBackOff{} }),
	}
	f.ctl = New(f.store, append(base, opts...)...)

	res, err := f.ctl.CreateSession(f.ctx, "Host")
	require.NoError(t, err)
	f.sid = res.SessionID
	return f
}

func (f *fixture) join(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		_, err := f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: id, FirstName: id, LastName: "Test", Age: 25})
		require.NoError(t, err)
	}
}

func (f *fixture) participant(t *testing.T, id string) domain.Participant {
	t.Helper()
	p, err := f.ctl.GetParticipant(f.ctx, f.sid, id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return *p
}

func (f *fixture) phase(t *testing.T) domain.Phase {
	t.Helper()
	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	return s.Status
}

// betting deixa a sessão em BETTING com os competidores informados
func (f *fixture) betting(t *testing.T, contestants []string, bettors ...string) {
	t.Helper()
	f.join(t, append(append([]string{}, contestants...), bettors...)...)
	_, err := f.ctl.CreateChallenge(f.ctx, ChallengeInput{SessionID: f.sid, Name: "Dance-off", RequiredCount: len(contestants)})
	require.NoError(t, err)
	for _, id := range contestants {
		_, err := f.ctl.Volunteer(f.ctx, f.sid, id)
		require.NoError(t, err)
	}
	require.NoError(t, f.ctl.CloseVolunteering(f.ctx, f.sid))
	_, err = f.ctl.SelectContestants(f.ctx, SelectInput{SessionID: f.sid, Mode: domain.SelectionManual, SelectedIDs: contestants})
	require.NoError(t, err)
	require.NoError(t, f.ctl.StartBettingPhase(f.ctx, f.sid))
}

func (f *fixture) bet(t *testing.T, user, contestant string, amount int64) BetResult {
	t.Helper()
	res, err := f.ctl.PlaceBet(f.ctx, BetInput{SessionID: f.sid, UserID: user, ContestantID: contestant, NewAmount: amount})
	require.NoError(t, err)
	return res
}

// checkLedger confere as invariantes de saldo e de conservação do dinheiro
func checkLedger(t *testing.T, store ledger.Store, sid string, total int64) {
	t.Helper()
	snap, err := store.Snapshot(context.Background(), sid)
	require.NoError(t, err)

	var sum int64
	for _, p := range snap.Participants {
		assert.GreaterOrEqual(t, p.Balance, int64(0), p.UserID)
		assert.GreaterOrEqual(t, p.LockedBalance, int64(0), p.UserID)
		if p.IsContestant {
			assert.True(t, p.IsVolunteer, "contestant %s must be a volunteer", p.UserID)
		}
		sum += p.Balance + p.LockedBalance
	}
	for _, v := range snap.Pool {
		assert.GreaterOrEqual(t, v, int64(0))
		sum += v
	}
	assert.Equal(t, total, sum, "money must be conserved")
}

func TestCreateSession(t *testing.T) {
	f := newFixture(t)

	assert.Len(t, f.sid, codeLength)
	for _, r := range f.sid {
		assert.Contains(t, codeAlphabet, string(r))
	}

	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, domain.PhaseOpen, s.Status)
	assert.Equal(t, "Host", s.HostName)
	assert.Regexp(t, `^host_[0-9a-f-]{36}$`, s.HostID)

	ev := f.pub.last()
	assert.Equal(t, "createSession", ev.Op)
	assert.Equal(t, f.sid, ev.SessionID)
	assert.Equal(t, s.HostID, ev.Actor)

	res, err := f.ctl.CreateSession(f.ctx, "   ")
	require.NoError(t, err)
	s2, err := f.ctl.GetSession(f.ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultHostName, s2.HostName)
}

type seqSource struct {
	mu   sync.Mutex
	vals []int
	i    int
}

func (s *seqSource) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.vals[s.i%len(s.vals)] % n
	s.i++
	return v
}

func TestCreateSessionRetriesOnCodeCollision(t *testing.T) {
	// seis zeros para a primeira sessão, seis zeros (colisão) e seis uns na segunda
	vals := make([]int, 0, 18)
	for range 12 {
		vals = append(vals, 0)
	}
	for range 6 {
		vals = append(vals, 1)
	}
	ctl := New(ledger.NewMemory(), WithRand(&seqSource{vals: vals}))

	first, err := ctl.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.SessionID)

	second, err := ctl.CreateSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.SessionID)
}

func TestJoinSession(t *testing.T) {
	f := newFixture(t)

	res, err := f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: "u1", FirstName: "Ana", LastName: "Silva", Age: 30})
	require.NoError(t, err)
	assert.False(t, res.IsReturning)
	assert.Equal(t, domain.DefaultStartingBalance, res.Participant.Balance)
	assert.Zero(t, res.Participant.LockedBalance)

	again, err := f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: "u1", FirstName: "Other", LastName: "Name", Age: 40})
	require.NoError(t, err)
	assert.True(t, again.IsReturning)
	assert.Equal(t, res.Participant, again.Participant)

	s, err := f.ctl.GetSession(f.ctx, f.sid)
	require.NoError(t, err)
	assert.Equal(t, 1, s.ParticipantCount)

	_, err = f.ctl.JoinSession(f.ctx, JoinInput{SessionID: "NOPE", UserID: "u1", FirstName: "Ana", LastName: "Silva", Age: 30})
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: "", FirstName: "Ana", Age: 30})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.ctl.JoinSession(f.ctx, JoinInput{SessionID: f.sid, UserID: "u2", FirstName: "Ana", Age: -1})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestJoinSessionRequiresLastNameAndAge(t *testing.T) {
	f := newFixture(t)

	cases := map[string]JoinInput{
		"missing last name": {SessionID: f.sid, UserID: "u1", FirstName: "Ana", Age: 30},
		"blank last name":   {SessionID: f.sid, UserID: "u1", FirstName: "Ana", LastName: "   ", Age: 30},
		"missing age":       {SessionID: f.sid, UserID: "u1", FirstName: "Ana", LastName: "Silva"},
		"age above range":   {SessionID: f.sid, UserID: "u1", FirstName: "Ana", LastName: "Silva", Age: 151},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ctl.JoinSession(f.ctx, in)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}

	p, err := f.ctl.GetParticipant(f.ctx, f.sid, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestJoinSessionRespectsStartingBalanceRule(t *testing.T) {
	f := newFixture(t, WithRules(100, 3))
	f.join(t, "u1")
	assert.Equal(t, int64(100), f.participant(t, "u1").Balance)
}

func TestLookupsReturnNilWhenAbsent(t *testing.T) {
	f := newFixture(t)

	s, err := f.ctl.GetSession(f.ctx, "ZZZZZZ")
	require.NoError(t, err)
	assert.Nil(t, s)

	p, err := f.ctl.GetParticipant(f.ctx, f.sid, "ghost")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestVersionsIncreaseWithEveryCommit(t *testing.T) {
	f := newFixture(t)
	f.join(t, "a", "b")
	_, err := f.ctl.CreateChallenge(f.ctx, ChallengeInput{SessionID: f.sid, Name: "Sing", RequiredCount: 2})
	require.NoError(t, err)

	evs := f.pub.all()
	require.Len(t, evs, 4)
	for i := 1; i < len(evs); i++ {
		assert.Greater(t, evs[i].Version, evs[i-1].Version)
	}
	assert.Equal(t, "VOLUNTEERING", evs[3].Session.Status)
	require.NotNil(t, evs[3].Challenge)
	assert.Equal(t, "Sing", evs[3].Challenge.Name)
	assert.Len(t, evs[3].Participants, 2)
}

func TestPublishFailureDoesNotUndoCommit(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGame(reg)
	f := newFixture(t, WithMetrics(m))
	f.pub.fail = errors.New("broker down")

	f.join(t, "u1")
	assert.NotNil(t, f.participant(t, "u1"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishErrors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("joinSession", "ok")))
}

func TestRejectedOperationsAreCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewGame(reg)
	f := newFixture(t, WithMetrics(m))

	err := f.ctl.CloseBetting(f.ctx, f.sid)
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("closeBetting", "FAILED_PRECONDITION")))
}

func TestUnexpectedStoreErrorsAreInternal(t *testing.T) {
	f := newFixture(t)
	f.join(t, "u1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.ctl.CreateChallenge(ctx, ChallengeInput{SessionID: f.sid, Name: "x", RequiredCount: 2})
	assert.ErrorIs(t, err, apperr.ErrInternal)
	assert.Equal(t, domain.PhaseOpen, f.phase(t))
}
