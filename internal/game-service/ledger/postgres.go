package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
)

// Postgres implementa o ledger em banco
// Cada InTx é uma transação READ COMMITTED com locks de linha explícitos
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// querier é satisfeito por *sql.DB e *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (p *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Postgres) Session(ctx context.Context, id string) (domain.Session, error) {
	return (&pgTx{q: p.db}).Session(ctx, id, LockNone)
}

func (p *Postgres) Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	return scanParticipant(p.db.QueryRowContext(ctx, selectParticipant+`
		WHERE session_id=$1 AND user_id=$2`, sessionID, userID))
}

// Snapshot lê o estado numa transação somente-leitura REPEATABLE READ
func (p *Postgres) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Snapshot{}, err
	}
	defer tx.Rollback()

	snap, err := (&pgTx{q: tx, readOnly: true}).Snapshot(ctx, sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return snap, tx.Commit()
}

func (p *Postgres) ActiveSessions(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id FROM sessions
		WHERE status <> 'OPEN' OR updated_at >= $1
		ORDER BY id`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

type pgTx struct {
	q        querier
	readOnly bool // snapshot fora de InTx: sem FOR UPDATE
}

func (t *pgTx) lockSuffix() string {
	if t.readOnly {
		return ""
	}
	return " FOR UPDATE"
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ---------------------------------------------------------------------------
// Sessões

const selectSession = `
	SELECT s.id, s.host_id, s.host_name, s.status, COALESCE(s.current_challenge_id, ''),
	       s.participant_count, v.version, s.created_at, s.updated_at
	FROM sessions s
	JOIN session_versions v ON v.session_id = s.id
	WHERE s.id=$1`

func (t *pgTx) CreateSession(ctx context.Context, s domain.Session) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO sessions (id, host_id, host_name, status, participant_count, created_at, updated_at)
		VALUES ($1,$2,$3,$4,0,$5,$5)`,
		s.ID, s.HostID, s.HostName, string(s.Status), s.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	_, err = t.q.ExecContext(ctx, `INSERT INTO session_versions (session_id, version) VALUES ($1, 1)`, s.ID)
	return err
}

func (t *pgTx) Session(ctx context.Context, id string, lock LockMode) (domain.Session, error) {
	q := selectSession
	switch lock {
	case LockShare:
		q += " FOR SHARE OF s"
	case LockExclusive:
		q += " FOR UPDATE OF s"
	}

	var s domain.Session
	var status string
	err := t.q.QueryRowContext(ctx, q, id).Scan(
		&s.ID, &s.HostID, &s.HostName, &status, &s.CurrentChallengeID,
		&s.ParticipantCount, &s.Version, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Session{}, notFound(err)
	}
	s.Status = domain.Phase(status)
	return s, nil
}

func (t *pgTx) UpdateSession(ctx context.Context, s domain.Session) error {
	res, err := t.q.ExecContext(ctx, `
		UPDATE sessions
		SET status=$2, current_challenge_id=NULLIF($3,''), participant_count=$4, updated_at=$5
		WHERE id=$1`,
		s.ID, string(s.Status), s.CurrentChallengeID, s.ParticipantCount, s.UpdatedAt)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) BumpVersion(ctx context.Context, sessionID string) (int64, error) {
	var v int64
	err := t.q.QueryRowContext(ctx, `
		UPDATE session_versions SET version = version + 1
		WHERE session_id=$1
		RETURNING version`, sessionID).Scan(&v)
	return v, notFound(err)
}

// ---------------------------------------------------------------------------
// Participantes

const selectParticipant = `
	SELECT session_id, user_id, first_name, last_name, age, balance, locked_balance,
	       is_volunteer, is_contestant, joined_at
	FROM participants`

const participantCols = `session_id, user_id, first_name, last_name, age, balance, locked_balance,
	is_volunteer, is_contestant, joined_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParticipant(row rowScanner) (domain.Participant, error) {
	var p domain.Participant
	err := row.Scan(&p.SessionID, &p.UserID, &p.FirstName, &p.LastName, &p.Age,
		&p.Balance, &p.LockedBalance, &p.IsVolunteer, &p.IsContestant, &p.JoinedAt)
	if err != nil {
		return domain.Participant{}, notFound(err)
	}
	return p, nil
}

func (t *pgTx) InsertParticipant(ctx context.Context, p domain.Participant) (bool, error) {
	res, err := t.q.ExecContext(ctx, `
		INSERT INTO participants (`+participantCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (session_id, user_id) DO NOTHING`,
		p.SessionID, p.UserID, p.FirstName, p.LastName, p.Age,
		p.Balance, p.LockedBalance, p.IsVolunteer, p.IsContestant, p.JoinedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (t *pgTx) Participant(ctx context.Context, sessionID, userID string) (domain.Participant, error) {
	return scanParticipant(t.q.QueryRowContext(ctx, selectParticipant+`
		WHERE session_id=$1 AND user_id=$2`+t.lockSuffix(), sessionID, userID))
}

func (t *pgTx) Participants(ctx context.Context, sessionID string) ([]domain.Participant, error) {
	rows, err := t.q.QueryContext(ctx, selectParticipant+`
		WHERE session_id=$1
		ORDER BY joined_at, user_id`+t.lockSuffix(), sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ApplyDelta aplica o delta numa única instrução; a condição no WHERE garante
// saldo e saldo travado não negativos sobre o valor corrente da linha
func (t *pgTx) ApplyDelta(ctx context.Context, sessionID, userID string, d domain.ParticipantDelta) (domain.Participant, error) {
	p, err := scanParticipant(t.q.QueryRowContext(ctx, `
		UPDATE participants SET
		  balance        = balance + $3,
		  locked_balance = locked_balance + $4,
		  is_volunteer   = COALESCE($5, is_volunteer),
		  is_contestant  = COALESCE($6, is_contestant)
		WHERE session_id=$1 AND user_id=$2
		  AND balance + $3 >= 0 AND locked_balance + $4 >= 0
		RETURNING `+participantCols,
		sessionID, userID, d.Balance, d.Locked, d.IsVolunteer, d.IsContestant))
	if !errors.Is(err, ErrNotFound) {
		return p, err
	}

	// sem linha: participante inexistente ou saldo insuficiente
	var exists bool
	if err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM participants WHERE session_id=$1 AND user_id=$2)`,
		sessionID, userID).Scan(&exists); err != nil {
		return domain.Participant{}, err
	}
	if exists {
		return domain.Participant{}, ErrInsufficientFunds
	}
	return domain.Participant{}, ErrNotFound
}

// ---------------------------------------------------------------------------
// Desafios

func (t *pgTx) Challenge(ctx context.Context, sessionID, challengeID string) (domain.Challenge, error) {
	var c domain.Challenge
	var status string
	var minAge, maxAge sql.NullInt64
	var resolvedAt sql.NullTime
	err := t.q.QueryRowContext(ctx, `
		SELECT id, session_id, name, description, required_count, min_age, max_age, status,
		       contestants, COALESCE(winner_id, ''), created_at, resolved_at
		FROM challenges
		WHERE session_id=$1 AND id=$2`+t.lockSuffix(), sessionID, challengeID).Scan(
		&c.ID, &c.SessionID, &c.Name, &c.Description, &c.RequiredCount, &minAge, &maxAge, &status,
		pq.Array(&c.Contestants), &c.WinnerID, &c.CreatedAt, &resolvedAt)
	if err != nil {
		return domain.Challenge{}, notFound(err)
	}
	c.Status = domain.Phase(status)
	if minAge.Valid {
		v := int(minAge.Int64)
		c.MinAge = &v
	}
	if maxAge.Valid {
		v := int(maxAge.Int64)
		c.MaxAge = &v
	}
	if resolvedAt.Valid {
		c.ResolvedAt = &resolvedAt.Time
	}
	return c, nil
}

func (t *pgTx) SaveChallenge(ctx context.Context, c domain.Challenge) error {
	contestants := c.Contestants
	if contestants == nil {
		contestants = []string{}
	}
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO challenges (id, session_id, name, description, required_count, min_age, max_age,
		                        status, contestants, winner_id, created_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NULLIF($10,''),$11,$12)
		ON CONFLICT (id) DO UPDATE SET
		  status      = EXCLUDED.status,
		  contestants = EXCLUDED.contestants,
		  winner_id   = EXCLUDED.winner_id,
		  resolved_at = EXCLUDED.resolved_at`,
		c.ID, c.SessionID, c.Name, c.Description, c.RequiredCount, c.MinAge, c.MaxAge,
		string(c.Status), pq.StringArray(contestants), c.WinnerID, c.CreatedAt, c.ResolvedAt)
	return err
}

// DeleteChallenge remove o desafio; voluntários, apostas e pool caem por cascade
func (t *pgTx) DeleteChallenge(ctx context.Context, sessionID, challengeID string) error {
	res, err := t.q.ExecContext(ctx, `DELETE FROM challenges WHERE session_id=$1 AND id=$2`, sessionID, challengeID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Voluntários

func (t *pgTx) Volunteers(ctx context.Context, sessionID, challengeID string) ([]domain.VolunteerEntry, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT session_id, challenge_id, user_id, locked_amount, volunteered_at
		FROM volunteers
		WHERE session_id=$1 AND challenge_id=$2
		ORDER BY volunteered_at, user_id`, sessionID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.VolunteerEntry
	for rows.Next() {
		var v domain.VolunteerEntry
		if err := rows.Scan(&v.SessionID, &v.ChallengeID, &v.UserID, &v.LockedAmount, &v.VolunteeredAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (t *pgTx) AddVolunteer(ctx context.Context, v domain.VolunteerEntry) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO volunteers (session_id, challenge_id, user_id, locked_amount, volunteered_at)
		VALUES ($1,$2,$3,$4,$5)`,
		v.SessionID, v.ChallengeID, v.UserID, v.LockedAmount, v.VolunteeredAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (t *pgTx) RemoveVolunteer(ctx context.Context, sessionID, challengeID, userID string) error {
	_, err := t.q.ExecContext(ctx, `
		DELETE FROM volunteers WHERE session_id=$1 AND challenge_id=$2 AND user_id=$3`,
		sessionID, challengeID, userID)
	return err
}

// ---------------------------------------------------------------------------
// Apostas

const selectBet = `
	SELECT id, session_id, challenge_id, user_id, contestant_id, amount, odds_at_placement,
	       status, payout, placed_at, updated_at, resolved_at
	FROM bets`

func scanBet(row rowScanner) (domain.Bet, error) {
	var b domain.Bet
	var status string
	var resolvedAt sql.NullTime
	err := row.Scan(&b.ID, &b.SessionID, &b.ChallengeID, &b.UserID, &b.ContestantID, &b.Amount,
		&b.OddsAtPlacement, &status, &b.Payout, &b.PlacedAt, &b.UpdatedAt, &resolvedAt)
	if err != nil {
		return domain.Bet{}, notFound(err)
	}
	b.Status = domain.BetStatus(status)
	if resolvedAt.Valid {
		b.ResolvedAt = &resolvedAt.Time
	}
	return b, nil
}

func (t *pgTx) Bet(ctx context.Context, sessionID, challengeID, userID, contestantID string) (domain.Bet, error) {
	return scanBet(t.q.QueryRowContext(ctx, selectBet+`
		WHERE session_id=$1 AND challenge_id=$2 AND user_id=$3 AND contestant_id=$4`+t.lockSuffix(),
		sessionID, challengeID, userID, contestantID))
}

// SaveBet faz upsert pela chave determinística da aposta
func (t *pgTx) SaveBet(ctx context.Context, b domain.Bet) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO bets (id, session_id, challenge_id, user_id, contestant_id, amount,
		                  odds_at_placement, status, payout, placed_at, updated_at, resolved_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (id) DO UPDATE SET
		  amount            = EXCLUDED.amount,
		  odds_at_placement = EXCLUDED.odds_at_placement,
		  status            = EXCLUDED.status,
		  payout            = EXCLUDED.payout,
		  updated_at        = EXCLUDED.updated_at,
		  resolved_at       = EXCLUDED.resolved_at`,
		b.ID, b.SessionID, b.ChallengeID, b.UserID, b.ContestantID, b.Amount,
		b.OddsAtPlacement, string(b.Status), b.Payout, b.PlacedAt, b.UpdatedAt, b.ResolvedAt)
	return err
}

func (t *pgTx) PendingBets(ctx context.Context, sessionID, challengeID string) ([]domain.Bet, error) {
	rows, err := t.q.QueryContext(ctx, selectBet+`
		WHERE session_id=$1 AND challenge_id=$2 AND status='PENDING'
		ORDER BY id`+t.lockSuffix(), sessionID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Pool

func (t *pgTx) ResetPool(ctx context.Context, sessionID, challengeID string, contestants []string) error {
	if _, err := t.q.ExecContext(ctx, `
		DELETE FROM pools WHERE session_id=$1 AND challenge_id=$2`, sessionID, challengeID); err != nil {
		return err
	}
	for _, id := range contestants {
		if err := t.OpenPool(ctx, sessionID, challengeID, id); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) OpenPool(ctx context.Context, sessionID, challengeID, contestantID string) error {
	_, err := t.q.ExecContext(ctx, `
		INSERT INTO pools (session_id, challenge_id, contestant_id, total)
		VALUES ($1,$2,$3,0)
		ON CONFLICT (session_id, challenge_id, contestant_id) DO NOTHING`,
		sessionID, challengeID, contestantID)
	return err
}

// AddPool incrementa o pool do competidor de forma atômica
func (t *pgTx) AddPool(ctx context.Context, sessionID, challengeID, contestantID string, delta int64) (int64, error) {
	var total int64
	err := t.q.QueryRowContext(ctx, `
		UPDATE pools SET total = total + $4
		WHERE session_id=$1 AND challenge_id=$2 AND contestant_id=$3 AND total + $4 >= 0
		RETURNING total`, sessionID, challengeID, contestantID, delta).Scan(&total)
	if !errors.Is(err, sql.ErrNoRows) {
		return total, err
	}

	// sem linha: competidor fora do pool ou total insuficiente
	var exists bool
	if err := t.q.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM pools WHERE session_id=$1 AND challenge_id=$2 AND contestant_id=$3)`,
		sessionID, challengeID, contestantID).Scan(&exists); err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrInsufficientFunds
	}
	return 0, ErrNotFound
}

func (t *pgTx) Pool(ctx context.Context, sessionID, challengeID string) (map[string]int64, error) {
	rows, err := t.q.QueryContext(ctx, `
		SELECT contestant_id, total FROM pools WHERE session_id=$1 AND challenge_id=$2`,
		sessionID, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int64{}
	for rows.Next() {
		var id string
		var total int64
		if err := rows.Scan(&id, &total); err != nil {
			return nil, err
		}
		out[id] = total
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Snapshot

func (t *pgTx) Snapshot(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	s, err := t.Session(ctx, sessionID, LockNone)
	if err != nil {
		return domain.Snapshot{}, err
	}
	// leitura sem lock: o snapshot nunca autoriza movimentação
	ro := &pgTx{q: t.q, readOnly: true}

	snap := domain.Snapshot{Session: s, Pool: map[string]int64{}}
	if snap.Participants, err = ro.Participants(ctx, sessionID); err != nil {
		return domain.Snapshot{}, err
	}
	if s.CurrentChallengeID == "" {
		return snap, nil
	}
	c, err := ro.Challenge(ctx, sessionID, s.CurrentChallengeID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	snap.Challenge = &c
	if snap.Volunteers, err = ro.Volunteers(ctx, sessionID, c.ID); err != nil {
		return domain.Snapshot{}, err
	}
	if snap.Pool, err = ro.Pool(ctx, sessionID, c.ID); err != nil {
		return domain.Snapshot{}, err
	}
	return snap, nil
}
