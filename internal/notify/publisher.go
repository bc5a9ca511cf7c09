package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

// LogPublisher writes notifications to a structured logger.
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, notes ...domain.Notification) error {
	for _, n := range notes {
		attrs := []slog.Attr{
			slog.String("id", n.ID),
			slog.String("kind", string(n.Kind)),
			slog.String("source", n.Source.String()),
		}
		if n.EventID != 0 {
			attrs = append(attrs, slog.Int64("event_id", n.EventID))
		}
		if n.TicketID != 0 {
			attrs = append(attrs, slog.Int64("ticket_id", n.TicketID))
		}
		if n.Account != "" {
			attrs = append(attrs, slog.String("account", n.Account.String()))
		}
		if n.Counterparty != "" {
			attrs = append(attrs, slog.String("counterparty", n.Counterparty.String()))
		}
		if n.Amount != 0 {
			attrs = append(attrs, slog.Int64("amount", int64(n.Amount)))
		}
		if n.Role != "" {
			attrs = append(attrs, slog.String("role", string(n.Role)))
		}
		p.logger.LogAttrs(ctx, slog.LevelInfo, "notification", attrs...)
	}
	return nil
}

// Publisher is the sink contract shared by every publisher in this package.
type Publisher interface {
	Publish(ctx context.Context, notes ...domain.Notification) error
}

// Multi fans notifications out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, notes ...domain.Notification) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, notes...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recorder keeps the most recent notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	limit int
	notes []domain.Notification
}

// NewRecorder keeps at most limit notifications; limit <= 0 keeps all.
func NewRecorder(limit int) *Recorder {
	return &Recorder{limit: limit}
}

func (r *Recorder) Publish(_ context.Context, notes ...domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, notes...)
	if r.limit > 0 && len(r.notes) > r.limit {
		r.notes = append([]domain.Notification(nil), r.notes[len(r.notes)-r.limit:]...)
	}
	return nil
}

// Recent returns up to n of the newest notifications, oldest first.
func (r *Recorder) Recent(n int) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || n > len(r.notes) {
		n = len(r.notes)
	}
	out := make([]domain.Notification, n)
	copy(out, r.notes[len(r.notes)-n:])
	return out
}
