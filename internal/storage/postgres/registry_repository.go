package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type RegistryRepository struct {
	db
}

func NewRegistryRepository(pool *pgxpool.Pool) *RegistryRepository {
	return &RegistryRepository{db: db{pool: pool}}
}

// NextID increments the named counter. The counter row stays locked until
// the transaction ends, so ids are gapless.
func (r *RegistryRepository) NextID(ctx context.Context, counter string) (int64, error) {
	const stmt = `
INSERT INTO counters (name, value) VALUES ($1, 1)
ON CONFLICT (name) DO UPDATE SET value = counters.value + 1
RETURNING value`

	var id int64
	if err := r.queryRow(ctx, stmt, counter).Scan(&id); err != nil {
		return 0, fmt.Errorf("next %s id: %w", counter, err)
	}
	return id, nil
}

const eventColumns = `id, name, unit_price, total_supply, tickets_sold, max_per_buyer, start_time, end_time, active`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	err := row.Scan(&e.ID, &e.Name, &e.UnitPrice, &e.TotalSupply, &e.TicketsSold, &e.MaxPerBuyer, &e.StartTime, &e.EndTime, &e.Active)
	if err != nil {
		return domain.Event{}, err
	}
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	return e, nil
}

func (r *RegistryRepository) CreateEvent(ctx context.Context, event domain.Event) error {
	const stmt = `
INSERT INTO events (` + eventColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.exec(ctx, stmt,
		event.ID,
		event.Name,
		event.UnitPrice,
		event.TotalSupply,
		event.TicketsSold,
		event.MaxPerBuyer,
		event.StartTime,
		event.EndTime,
		event.Active,
	)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrInvalidEvent
		}
		return fmt.Errorf("create event: %w", err)
	}
	return nil
}

// GetEvent takes a share lock inside a transaction so the event cannot be
// deactivated underneath a purchase that already checked it.
func (r *RegistryRepository) GetEvent(ctx context.Context, id int64) (domain.Event, error) {
	return r.getEvent(ctx, id, lockClause(ctx, "FOR SHARE"))
}

func (r *RegistryRepository) GetEventForUpdate(ctx context.Context, id int64) (domain.Event, error) {
	return r.getEvent(ctx, id, lockClause(ctx, "FOR UPDATE"))
}

func (r *RegistryRepository) getEvent(ctx context.Context, id int64, lock string) (domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1` + lock
	event, err := scanEvent(r.queryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, domain.ErrUnknownEvent
		}
		return domain.Event{}, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// ListEvents returns every event in creation order.
func (r *RegistryRepository) ListEvents(ctx context.Context) ([]domain.Event, error) {
	const query = `SELECT ` + eventColumns + ` FROM events ORDER BY id ASC`
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate events: %w", rows.Err())
	}
	return events, nil
}

func (r *RegistryRepository) SetEventActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.exec(ctx, `UPDATE events SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set event active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnknownEvent
	}
	return nil
}

func (r *RegistryRepository) IncrementTicketsSold(ctx context.Context, id int64) error {
	tag, err := r.exec(ctx, `UPDATE events SET tickets_sold = tickets_sold + 1 WHERE id = $1`, id)
	if err != nil {
		if isCheckViolation(err) {
			return domain.ErrSoldOut
		}
		return fmt.Errorf("increment tickets sold: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnknownEvent
	}
	return nil
}

func (r *RegistryRepository) PurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) (int64, error) {
	const query = `SELECT COALESCE(MAX(purchased), 0) FROM purchase_counts WHERE event_id = $1 AND buyer = $2`
	var n int64
	if err := r.queryRow(ctx, query, eventID, buyer).Scan(&n); err != nil {
		return 0, fmt.Errorf("purchase count: %w", err)
	}
	return n, nil
}

func (r *RegistryRepository) IncrementPurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) error {
	const stmt = `
INSERT INTO purchase_counts (event_id, buyer, purchased) VALUES ($1, $2, 1)
ON CONFLICT (event_id, buyer) DO UPDATE SET purchased = purchase_counts.purchased + 1`

	if _, err := r.exec(ctx, stmt, eventID, buyer); err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUnknownEvent
		}
		return fmt.Errorf("increment purchase count: %w", err)
	}
	return nil
}

const ticketColumns = `id, event_id, owner, purchase_price, used, approved`

func (r *RegistryRepository) CreateTicket(ctx context.Context, ticket domain.Ticket) error {
	const stmt = `
INSERT INTO tickets (` + ticketColumns + `)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt,
		ticket.ID,
		ticket.EventID,
		ticket.Owner,
		ticket.PurchasePrice,
		ticket.Used,
		ticket.Approved,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUnknownEvent
		}
		return fmt.Errorf("create ticket: %w", err)
	}
	return nil
}

func (r *RegistryRepository) GetTicket(ctx context.Context, id int64) (domain.Ticket, error) {
	return r.getTicket(ctx, id, "")
}

func (r *RegistryRepository) GetTicketForUpdate(ctx context.Context, id int64) (domain.Ticket, error) {
	return r.getTicket(ctx, id, lockClause(ctx, "FOR UPDATE"))
}

func (r *RegistryRepository) getTicket(ctx context.Context, id int64, lock string) (domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1` + lock
	var t domain.Ticket
	err := r.queryRow(ctx, query, id).Scan(&t.ID, &t.EventID, &t.Owner, &t.PurchasePrice, &t.Used, &t.Approved)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Ticket{}, domain.ErrUnknownTicket
		}
		return domain.Ticket{}, fmt.Errorf("get ticket: %w", err)
	}
	return t, nil
}

func (r *RegistryRepository) MarkTicketUsed(ctx context.Context, id int64) error {
	return r.updateTicket(ctx, "mark ticket used", `UPDATE tickets SET used = TRUE WHERE id = $1`, id)
}

func (r *RegistryRepository) SetTicketOwner(ctx context.Context, id int64, owner domain.Account) error {
	return r.updateTicket(ctx, "set ticket owner", `UPDATE tickets SET owner = $2, approved = '' WHERE id = $1`, id, owner)
}

func (r *RegistryRepository) SetTicketApproval(ctx context.Context, id int64, operator domain.Account) error {
	return r.updateTicket(ctx, "set ticket approval", `UPDATE tickets SET approved = $2 WHERE id = $1`, id, operator)
}

func (r *RegistryRepository) updateTicket(ctx context.Context, op, stmt string, args ...any) error {
	tag, err := r.exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUnknownTicket
	}
	return nil
}

func (r *RegistryRepository) SetOperatorApproval(ctx context.Context, owner, operator domain.Account, approved bool) error {
	stmt := `DELETE FROM operator_approvals WHERE owner = $1 AND operator = $2`
	if approved {
		stmt = `INSERT INTO operator_approvals (owner, operator) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	}
	if _, err := r.exec(ctx, stmt, owner, operator); err != nil {
		return fmt.Errorf("set operator approval: %w", err)
	}
	return nil
}

func (r *RegistryRepository) IsOperatorApproved(ctx context.Context, owner, operator domain.Account) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM operator_approvals WHERE owner = $1 AND operator = $2)`
	var ok bool
	if err := r.queryRow(ctx, query, owner, operator).Scan(&ok); err != nil {
		return false, fmt.Errorf("is operator approved: %w", err)
	}
	return ok, nil
}
