// Package game é o controlador de fases do jogo.
//
// Cada operação valida a entrada, abre uma transação no ledger, confere a fase
// armazenada sob lock, aplica os deltas e incrementa a versão da sessão. Depois
// do commit o snapshot versionado é publicado para a projeção; falha na
// publicação nunca desfaz o commit.
package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/radieske/party-bet-platform/internal/game-service/domain"
	"github.com/radieske/party-bet-platform/internal/game-service/ledger"
	"github.com/radieske/party-bet-platform/internal/shared/apperr"
	"github.com/radieske/party-bet-platform/internal/shared/logger"
	"github.com/radieske/party-bet-platform/internal/shared/metrics"
	"github.com/radieske/party-bet-platform/internal/shared/randutil"
	"github.com/radieske/party-bet-platform/pkg/contracts/events"
)

// Publisher entrega o snapshot versionado para a projeção
type Publisher interface {
	Publish(ctx context.Context, e events.GameStateChanged) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, events.GameStateChanged) error { return nil }

// errUnchanged encerra a transação sem escrita e sem publicação
var errUnchanged = errors.New("unchanged")

const publishTimeout = 5 * time.Second

type Controller struct {
	store   ledger.Store
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Game
	rand    randutil.Source
	now     func() time.Time

	startingBalance int64
	multiplier      int64
	publishTries    uint
	newBackOff      func() backoff.BackOff
}

type Option func(*Controller)

func WithPublisher(p Publisher) Option { return func(c *Controller) { c.pub = p } }

func WithLogger(l *zap.Logger) Option { return func(c *Controller) { c.log = l } }

func WithMetrics(m *metrics.Game) Option { return func(c *Controller) { c.metrics = m } }

// WithRand troca a estratégia de sorteio (códigos de sessão e seleção aleatória)
func WithRand(src randutil.Source) Option {
	return func(c *Controller) { c.rand = &lockedSource{src: src} }
}

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithRules define saldo inicial e multiplicador do competidor vencedor
func WithRules(startingBalance, multiplier int64) Option {
	return func(c *Controller) {
		if startingBalance > 0 {
			c.startingBalance = startingBalance
		}
		if multiplier > 0 {
			c.multiplier = multiplier
		}
	}
}

// WithPublishRetry limita as tentativas de publicação e a política de espera
func WithPublishRetry(tries uint, newBackOff func() backoff.BackOff) Option {
	return func(c *Controller) {
		if tries > 0 {
			c.publishTries = tries
		}
		if newBackOff != nil {
			c.newBackOff = newBackOff
		}
	}
}

func New(store ledger.Store, opts ...Option) *Controller {
	c := &Controller{
		store:           store,
		pub:             nopPublisher{},
		log:             zap.NewNop(),
		rand:            randutil.Default(),
		now:             time.Now,
		startingBalance: domain.DefaultStartingBalance,
		multiplier:      domain.DefaultVolunteerMultiplier,
		publishTries:    5,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 50 * time.Millisecond
			b.MaxInterval = time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// lockedSource serializa geradores que não são seguros para uso concorrente
type lockedSource struct {
	mu  sync.Mutex
	src randutil.Source
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

// apply roda fn numa transação, incrementa a versão da sessão e publica o
// snapshot após o commit. Devolve o erro bruto do ledger.
func (c *Controller) apply(ctx context.Context, op, sessionID string, actor *string, fn func(tx ledger.Tx) error) error {
	var snap domain.Snapshot
	err := c.store.InTx(ctx, func(tx ledger.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		if _, err := tx.BumpVersion(ctx, sessionID); err != nil {
			return err
		}
		var err error
		snap, err = tx.Snapshot(ctx, sessionID)
		return err
	})
	if errors.Is(err, errUnchanged) {
		return nil
	}
	if err != nil {
		return err
	}

	who := ""
	if actor != nil {
		who = *actor
	}
	c.publish(ctx, SnapshotEvent(snap, op, who, c.now()))
	return nil
}

// publish tenta entregar o evento com backoff; a falha só é registrada
func (c *Controller) publish(ctx context.Context, e events.GameStateChanged) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	_, err := backoff.Retry(pctx, func() (struct{}, error) {
		return struct{}{}, c.pub.Publish(pctx, e)
	},
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(c.publishTries),
	)
	if err != nil {
		if c.metrics != nil {
			c.metrics.PublishErrors.Inc()
		}
		logger.Session(c.log, e.SessionID).Warn("publish game state failed",
			zap.Int64("version", e.Version),
			zap.String("op", e.Op),
			zap.Error(err))
	}
}

// done traduz o erro para a taxonomia pública e registra métricas e log
func (c *Controller) done(op string, err error, fields ...zap.Field) error {
	err = mapErr(err)
	result := "ok"
	if err != nil {
		result = apperr.KindName(err)
	}
	if c.metrics != nil {
		c.metrics.Operations.WithLabelValues(op, result).Inc()
	}

	fields = append(fields, zap.String("op", op))
	switch {
	case err == nil:
		c.log.Info("game operation", fields...)
	case apperr.KindOf(err) == apperr.ErrInternal.Kind:
		c.log.Error("game operation failed", append(fields, zap.Error(err))...)
	default:
		c.log.Debug("game operation rejected", append(fields, zap.Error(err))...)
	}
	return err
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return ae
	case errors.Is(err, ledger.ErrNotFound):
		return apperr.NotFound("record not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return apperr.FailedPrecondition("insufficient balance")
	case errors.Is(err, ledger.ErrConflict):
		return apperr.FailedPrecondition("duplicate action")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return apperr.Internal("operation aborted", err)
	default:
		return apperr.Internal("ledger unavailable", err)
	}
}

// ---------------------------------------------------------------------------
// Helpers de leitura dentro da transação

func loadSession(ctx context.Context, tx ledger.Tx, id string, lock ledger.LockMode) (domain.Session, error) {
	s, err := tx.Session(ctx, id, lock)
	if errors.Is(err, ledger.ErrNotFound) {
		return s, apperr.NotFound("session not found")
	}
	return s, err
}

func requirePhase(s domain.Session, allowed ...domain.Phase) error {
	for _, p := range allowed {
		if s.Status == p {
			return nil
		}
	}
	return apperr.FailedPrecondition("operation not allowed in phase " + string(s.Status))
}

func loadChallenge(ctx context.Context, tx ledger.Tx, s domain.Session) (domain.Challenge, error) {
	if s.CurrentChallengeID == "" {
		return domain.Challenge{}, apperr.FailedPrecondition("no active challenge")
	}
	ch, err := tx.Challenge(ctx, s.ID, s.CurrentChallengeID)
	if errors.Is(err, ledger.ErrNotFound) {
		return ch, apperr.NotFound("challenge not found")
	}
	return ch, err
}

func loadParticipant(ctx context.Context, tx ledger.Tx, sessionID, userID string) (domain.Participant, error) {
	p, err := tx.Participant(ctx, sessionID, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return p, apperr.NotFound("participant not found")
	}
	return p, err
}

// setPhase grava a fase no desafio (quando informado) e na sessão
func (c *Controller) setPhase(ctx context.Context, tx ledger.Tx, s domain.Session, ch *domain.Challenge, phase domain.Phase) error {
	if ch != nil {
		ch.Status = phase
		if err := tx.SaveChallenge(ctx, *ch); err != nil {
			return err
		}
	}
	s.Status = phase
	s.UpdatedAt = c.now()
	return tx.UpdateSession(ctx, s)
}

// release devolve ao saldo tudo o que está travado e limpa os papéis
func release(ctx context.Context, tx ledger.Tx, p domain.Participant) error {
	if p.LockedBalance == 0 && !p.IsVolunteer && !p.IsContestant {
		return nil
	}
	_, err := tx.ApplyDelta(ctx, p.SessionID, p.UserID, domain.ParticipantDelta{
		Balance:      p.LockedBalance,
		Locked:       -p.LockedBalance,
		IsVolunteer:  domain.Flag(false),
		IsContestant: domain.Flag(false),
	})
	return err
}

func required(field, value string) error {
	if value == "" {
		return apperr.InvalidArgument(field + " is required")
	}
	return nil
}
