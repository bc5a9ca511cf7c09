package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

type MarketRepository struct {
	db
}

func NewMarketRepository(pool *pgxpool.Pool) *MarketRepository {
	return &MarketRepository{db: db{pool: pool}}
}

func (r *MarketRepository) GetListing(ctx context.Context, ticketID int64) (domain.Listing, error) {
	const query = `SELECT ticket_id, seller, price, active FROM listings WHERE ticket_id = $1`
	var l domain.Listing
	err := r.queryRow(ctx, query, ticketID).Scan(&l.TicketID, &l.Seller, &l.Price, &l.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Listing{}, domain.ErrUnknownListing
		}
		return domain.Listing{}, fmt.Errorf("get listing: %w", err)
	}
	return l, nil
}

func (r *MarketRepository) SaveListing(ctx context.Context, listing domain.Listing) error {
	const stmt = `
INSERT INTO listings (ticket_id, seller, price, active)
VALUES ($1, $2, $3, $4)
ON CONFLICT (ticket_id) DO UPDATE
SET seller = EXCLUDED.seller, price = EXCLUDED.price, active = EXCLUDED.active`

	_, err := r.exec(ctx, stmt, listing.TicketID, listing.Seller, listing.Price, listing.Active)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrUnknownTicket
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidAmount
		}
		return fmt.Errorf("save listing: %w", err)
	}
	return nil
}

// CloseListing only matches the listing the caller read, so a concurrent
// relist or sale makes it fail instead of closing the wrong offer.
func (r *MarketRepository) CloseListing(ctx context.Context, listing domain.Listing) error {
	const stmt = `
UPDATE listings SET active = FALSE
WHERE ticket_id = $1 AND active AND seller = $2 AND price = $3`

	tag, err := r.exec(ctx, stmt, listing.TicketID, listing.Seller, listing.Price)
	if err != nil {
		return fmt.Errorf("close listing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNoActiveListing
	}
	return nil
}
