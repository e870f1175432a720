package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
)

// Memory é o ledger em memória usado em testes e no modo local.
// Transações são serializadas por um mutex e trabalham sobre uma cópia do
// estado, descartada se fn falhar.
type Memory struct {
	mu   sync.Mutex
	data *memData
}

type memData struct {
	sessions     map[string]domain.Session
	versions     map[string]int64
	participants map[string]map[string]domain.Participant    // sessionID -> userID
	challenges   map[string]domain.Challenge                 // challengeID
	volunteers   map[string]map[string]domain.VolunteerEntry // challengeID -> userID
	bets         map[string]domain.Bet                       // betID
	pools        map[string]map[string]int64                 // challengeID -> contestantID
}

func NewMemory() *Memory {
	return &Memory{data: &memData{
		sessions:     map[string]domain.Session{},
		versions:     map[string]int64{},
		participants: map[string]map[string]domain.Participant{},
		challenges:   map[string]domain.Challenge{},
		volunteers:   map[string]map[string]domain.VolunteerEntry{},
		bets:         map[string]domain.Bet{},
		pools:        map[string]map[string]int64{},
	}}
}

func (m *Memory) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.data.clone()
	if err := fn(&memTx{d: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Memory) Session(ctx context.Context, id string) (domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{d: m.data}).Session(ctx, id, LockNone)
}

func (m *Memory) Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{d: m.data}).Participant(ctx, sessionID, userID)
}

func (m *Memory) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{d: m.data.clone()}).Snapshot(ctx, sessionID)
}

func (m *Memory) ActiveSessions(_ context.Context, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for id, s := range m.data.sessions {
		if s.Status != domain.PhaseOpen || !s.UpdatedAt.Before(since) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) Ping(context.Context) error { return nil }

func (d *memData) clone() *memData {
	out := &memData{
		sessions:     make(map[string]domain.Session, len(d.sessions)),
		versions:     make(map[string]int64, len(d.versions)),
		participants: make(map[string]map[string]domain.Participant, len(d.participants)),
		challenges:   make(map[string]domain.Challenge, len(d.challenges)),
		volunteers:   make(map[string]map[string]domain.VolunteerEntry, len(d.volunteers)),
		bets:         make(map[string]domain.Bet, len(d.bets)),
		pools:        make(map[string]map[string]int64, len(d.pools)),
	}
	for k, v := range d.sessions {
		out.sessions[k] = v
	}
	for k, v := range d.versions {
		out.versions[k] = v
	}
	for k, inner := range d.participants {
		cp := make(map[string]domain.Participant, len(inner))
		for uid, p := range inner {
			cp[uid] = p
		}
		out.participants[k] = cp
	}
	for k, c := range d.challenges {
		out.challenges[k] = copyChallenge(c)
	}
	for k, inner := range d.volunteers {
		cp := make(map[string]domain.VolunteerEntry, len(inner))
		for uid, v := range inner {
			cp[uid] = v
		}
		out.volunteers[k] = cp
	}
	for k, b := range d.bets {
		out.bets[k] = b
	}
	for k, inner := range d.pools {
		cp := make(map[string]int64, len(inner))
		for id, v := range inner {
			cp[id] = v
		}
		out.pools[k] = cp
	}
	return out
}

func copyChallenge(c domain.Challenge) domain.Challenge {
	c.Contestants = append([]string(nil), c.Contestants...)
	if c.MinAge != nil {
		v := *c.MinAge
		c.MinAge = &v
	}
	if c.MaxAge != nil {
		v := *c.MaxAge
		c.MaxAge = &v
	}
	if c.ResolvedAt != nil {
		v := *c.ResolvedAt
		c.ResolvedAt = &v
	}
	return c
}

// memTx opera diretamente sobre a cópia de trabalho
type memTx struct{ d *memData }

func (t *memTx) CreateSession(_ context.Context, s domain.Session) error {
	if _, ok := t.d.sessions[s.ID]; ok {
		return ErrConflict
	}
	s.Version = 1
	t.d.sessions[s.ID] = s
	t.d.versions[s.ID] = 1
	t.d.participants[s.ID] = map[string]domain.Participant{}
	return nil
}

func (t *memTx) Session(_ context.Context, id string, _ LockMode) (domain.Session, error) {
	s, ok := t.d.sessions[id]
	if !ok {
		return domain.Session{}, ErrNotFound
	}
	s.Version = t.d.versions[id]
	return s, nil
}

func (t *memTx) UpdateSession(_ context.Context, s domain.Session) error {
	cur, ok := t.d.sessions[s.ID]
	if !ok {
		return ErrNotFound
	}
	cur.Status = s.Status
	cur.CurrentChallengeID = s.CurrentChallengeID
	cur.ParticipantCount = s.ParticipantCount
	cur.UpdatedAt = s.UpdatedAt
	t.d.sessions[s.ID] = cur
	return nil
}

func (t *memTx) BumpVersion(_ context.Context, sessionID string) (int64, error) {
	if _, ok := t.d.sessions[sessionID]; !ok {
		return 0, ErrNotFound
	}
	t.d.versions[sessionID]++
	return t.d.versions[sessionID], nil
}

func (t *memTx) InsertParticipant(_ context.Context, p domain.Participant) (bool, error) {
	inner, ok := t.d.participants[p.SessionID]
	if !ok {
		return false, ErrNotFound
	}
	if _, exists := inner[p.UserID]; exists {
		return false, nil
	}
	inner[p.UserID] = p
	return true, nil
}

func (t *memTx) Participant(_ context.Context, sessionID, userID string) (domain.Participant, error) {
	p, ok := t.d.participants[sessionID][userID]
	if !ok {
		return domain.Participant{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) Participants(_ context.Context, sessionID string) ([]domain.Participant, error) {
	inner := t.d.participants[sessionID]
	out := make([]domain.Participant, 0, len(inner))
	for _, p := range inner {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (t *memTx) ApplyDelta(_ context.Context, sessionID, userID string, d domain.ParticipantDelta) (domain.Participant, error) {
	p, ok := t.d.participants[sessionID][userID]
	if !ok {
		return domain.Participant{}, ErrNotFound
	}
	next := p.Apply(d)
	if next.Balance < 0 || next.LockedBalance < 0 {
		return domain.Participant{}, ErrInsufficientFunds
	}
	t.d.participants[sessionID][userID] = next
	return next, nil
}

func (t *memTx) Challenge(_ context.Context, sessionID, challengeID string) (domain.Challenge, error) {
	c, ok := t.d.challenges[challengeID]
	if !ok || c.SessionID != sessionID {
		return domain.Challenge{}, ErrNotFound
	}
	return copyChallenge(c), nil
}

func (t *memTx) SaveChallenge(_ context.Context, c domain.Challenge) error {
	t.d.challenges[c.ID] = copyChallenge(c)
	return nil
}

func (t *memTx) DeleteChallenge(_ context.Context, sessionID, challengeID string) error {
	c, ok := t.d.challenges[challengeID]
	if !ok || c.SessionID != sessionID {
		return ErrNotFound
	}
	delete(t.d.challenges, challengeID)
	delete(t.d.volunteers, challengeID)
	delete(t.d.pools, challengeID)
	for id, b := range t.d.bets {
		if b.ChallengeID == challengeID {
			delete(t.d.bets, id)
		}
	}
	return nil
}

func (t *memTx) Volunteers(_ context.Context, _ string, challengeID string) ([]domain.VolunteerEntry, error) {
	inner := t.d.volunteers[challengeID]
	out := make([]domain.VolunteerEntry, 0, len(inner))
	for _, v := range inner {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].VolunteeredAt.Equal(out[j].VolunteeredAt) {
			return out[i].VolunteeredAt.Before(out[j].VolunteeredAt)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (t *memTx) AddVolunteer(_ context.Context, v domain.VolunteerEntry) error {
	inner, ok := t.d.volunteers[v.ChallengeID]
	if !ok {
		inner = map[string]domain.VolunteerEntry{}
		t.d.volunteers[v.ChallengeID] = inner
	}
	if _, exists := inner[v.UserID]; exists {
		return ErrConflict
	}
	inner[v.UserID] = v
	return nil
}

func (t *memTx) RemoveVolunteer(_ context.Context, _ string, challengeID, userID string) error {
	delete(t.d.volunteers[challengeID], userID)
	return nil
}

func (t *memTx) Bet(_ context.Context, _ string, challengeID, userID, contestantID string) (domain.Bet, error) {
	b, ok := t.d.bets[domain.BetID(challengeID, userID, contestantID)]
	if !ok {
		return domain.Bet{}, ErrNotFound
	}
	return b, nil
}

func (t *memTx) SaveBet(_ context.Context, b domain.Bet) error {
	t.d.bets[b.ID] = b
	return nil
}

func (t *memTx) PendingBets(_ context.Context, sessionID, challengeID string) ([]domain.Bet, error) {
	var out []domain.Bet
	for _, b := range t.d.bets {
		if b.SessionID == sessionID && b.ChallengeID == challengeID && b.Status == domain.BetPending {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) ResetPool(_ context.Context, _ string, challengeID string, contestants []string) error {
	pool := make(map[string]int64, len(contestants))
	for _, id := range contestants {
		pool[id] = 0
	}
	t.d.pools[challengeID] = pool
	return nil
}

func (t *memTx) OpenPool(_ context.Context, _ string, challengeID, contestantID string) error {
	pool, ok := t.d.pools[challengeID]
	if !ok {
		pool = map[string]int64{}
		t.d.pools[challengeID] = pool
	}
	if _, exists := pool[contestantID]; !exists {
		pool[contestantID] = 0
	}
	return nil
}

func (t *memTx) AddPool(_ context.Context, _ string, challengeID, contestantID string, delta int64) (int64, error) {
	cur, ok := t.d.pools[challengeID][contestantID]
	if !ok {
		return 0, ErrNotFound
	}
	if cur+delta < 0 {
		return 0, ErrInsufficientFunds
	}
	t.d.pools[challengeID][contestantID] = cur + delta
	return cur + delta, nil
}

func (t *memTx) Pool(_ context.Context, _ string, challengeID string) (map[string]int64, error) {
	out := make(map[string]int64, len(t.d.pools[challengeID]))
	for id, v := range t.d.pools[challengeID] {
		out[id] = v
	}
	return out, nil
}

func (t *memTx) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	s, err := t.Session(ctx, sessionID, LockNone)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap := domain.Snapshot{Session: s, Pool: map[string]int64{}}
	if snap.Participants, err = t.Participants(ctx, sessionID); err != nil {
		return domain.Snapshot{}, err
	}
	if s.CurrentChallengeID == "" {
		return snap, nil
	}
	c, err := t.Challenge(ctx, sessionID, s.CurrentChallengeID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Challenge = &c
	if snap.Volunteers, err = t.Volunteers(ctx, sessionID, c.ID); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Pool, err = t.Pool(ctx, sessionID, c.ID); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}
