package memory

import (
	"context"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

func (s *Store) GetListing(ctx context.Context, ticketID int64) (domain.Listing, error) {
	var listing domain.Listing
	err := s.do(ctx, func(st *state) error {
		l, ok := st.listings[ticketID]
		if !ok {
			return domain.ErrUnknownListing
		}
		listing = l
		return nil
	})
	return listing, err
}

func (s *Store) SaveListing(ctx context.Context, listing domain.Listing) error {
	return s.do(ctx, func(st *state) error {
		st.listings[listing.TicketID] = listing
		return nil
	})
}

func (s *Store) CloseListing(ctx context.Context, listing domain.Listing) error {
	return s.do(ctx, func(st *state) error {
		current, ok := st.listings[listing.TicketID]
		if !ok || !current.Active || current.Seller != listing.Seller || current.Price != listing.Price {
			return domain.ErrNoActiveListing
		}
		current.Active = false
		st.listings[listing.TicketID] = current
		return nil
	})
}
