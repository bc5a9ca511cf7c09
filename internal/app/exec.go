package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gurmukh6912/token-entry/internal/clock"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

const tracerName = "github.com/gurmukh6912/token-entry/internal/app"

// TxRunner runs fn inside a single storage transaction. Nested calls that
// receive a transactional context join the outer transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TxScoper is implemented by repositories that can share transactions with
// other repositories. Equal scopes join each other's transactions.
type TxScoper interface {
	TxScope() any
}

// txScope identifies the transactions r takes part in. A runner without a
// scope only shares transactions with itself.
func txScope(r any) any {
	if s, ok := r.(TxScoper); ok {
		return s.TxScope()
	}
	return r
}

// Notifier receives notifications for committed transitions.
type Notifier interface {
	Publish(ctx context.Context, notes ...domain.Notification) error
}

// Option configures the services in this package.
type Option func(*options)

type options struct {
	notifier Notifier
	logger   *slog.Logger
}

// WithNotifier sets the sink for committed-transition notifications.
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// transition is a validated state change. apply performs every internal
// write; payouts queued with pay are settled only after apply returns.
// Hooks queued with onCommit run once the outermost transaction has
// committed, before its notifications are published.
type transition struct {
	apply   func(ctx context.Context) error
	payouts []domain.Transfer
	notices []domain.Notification
	hooks   []func()
}

func (t *transition) pay(from, to domain.Account, amount domain.Amount) {
	if amount == 0 {
		return
	}
	t.payouts = append(t.payouts, domain.Transfer{From: from, To: to, Amount: amount})
}

func (t *transition) notify(n domain.Notification) {
	t.notices = append(t.notices, n)
}

func (t *transition) onCommit(fn func()) {
	t.hooks = append(t.hooks, fn)
}

type outbox struct {
	notes []domain.Notification
	hooks []func()
}

type outboxKey struct{}

// executor runs plan → apply → payouts inside one transaction and publishes
// notifications once the outermost transaction has committed.
type executor struct {
	source   domain.Account
	tx       TxRunner
	ledger   LedgerRepository
	clock    clock.Clock
	notifier Notifier
	logger   *slog.Logger
	tracer   trace.Tracer
}

func newExecutor(source domain.Account, tx TxRunner, ledger LedgerRepository, clk clock.Clock, o options) *executor {
	return &executor{
		source:   source,
		tx:       tx,
		ledger:   ledger,
		clock:    clk,
		notifier: o.notifier,
		logger:   o.logger,
		tracer:   otel.Tracer(tracerName),
	}
}

// run executes plan in a transaction. plan performs checks only and returns
// the transition to apply, or nil when there is nothing to do.
func (e *executor) run(ctx context.Context, op string, plan func(ctx context.Context) (*transition, error)) error {
	ctx, span := e.tracer.Start(ctx, op, trace.WithAttributes(
		attribute.String("ticketing.source", e.source.String()),
	))
	defer span.End()

	box, nested := ctx.Value(outboxKey{}).(*outbox)
	if !nested {
		box = &outbox{}
		ctx = context.WithValue(ctx, outboxKey{}, box)
	}

	err := e.tx.WithTx(ctx, func(txCtx context.Context) error {
		t, err := plan(txCtx)
		if err != nil {
			return err
		}
		if t == nil {
			return nil
		}
		if t.apply != nil {
			if err := t.apply(txCtx); err != nil {
				return err
			}
		}
		for _, p := range t.payouts {
			if err := e.settle(txCtx, p); err != nil {
				return err
			}
		}
		now := e.clock.Now()
		for _, n := range t.notices {
			if n.Source == "" {
				n.Source = e.source
			}
			n.At = now
			box.notes = append(box.notes, n)
		}
		box.hooks = append(box.hooks, t.hooks...)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if nested {
		return nil
	}

	e.logger.DebugContext(ctx, "transition committed",
		slog.String("op", op),
		slog.Int("notifications", len(box.notes)),
	)
	for _, hook := range box.hooks {
		hook()
	}
	e.publish(ctx, box.notes)
	return nil
}

func (e *executor) settle(ctx context.Context, p domain.Transfer) error {
	if p.Amount < 0 {
		return domain.ErrInvalidAmount
	}
	if e.ledger == nil {
		return domain.ErrInsufficientFunds
	}
	if err := e.ledger.Debit(ctx, p.From, p.Amount); err != nil {
		return err
	}
	return e.ledger.Credit(ctx, p.To, p.Amount)
}

func (e *executor) publish(ctx context.Context, notes []domain.Notification) {
	if e.notifier == nil || len(notes) == 0 {
		return
	}
	for i := range notes {
		notes[i].ID = uuid.NewString()
	}
	if err := e.notifier.Publish(ctx, notes...); err != nil {
		e.logger.WarnContext(ctx, "publish notifications",
			slog.Int("count", len(notes)),
			slog.String("error", err.Error()),
		)
	}
}
