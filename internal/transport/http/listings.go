package http

import (
	"context"
	"net/http"

	"github.com/gurmukh6912/token-entry/internal/app"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

type ListingReader interface {
	GetListing(ctx context.Context, ticketID int64) (domain.Listing, error)
}

type TicketLister interface {
	ListTicket(ctx context.Context, in app.ListTicketInput) (domain.Listing, error)
}

type ListingCanceler interface {
	CancelListing(ctx context.Context, caller domain.Account, ticketID int64) error
}

type ListingPurchaser interface {
	PurchaseListing(ctx context.Context, in app.PurchaseListingInput) (app.SaleResult, error)
}

// MarketInfo describes the market's current wiring.
type MarketInfo interface {
	RegistryAddress() domain.Account
	RoyaltyBeneficiary() domain.Account
}

func HandleGetListing(svc ListingReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ticketID")
		if !ok {
			return
		}
		listing, err := svc.GetListing(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newListingResponse(listing))
	}
}

// HandleListTicket lists or relists the caller's ticket.
func HandleListTicket(svc TicketLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ticketID")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req listTicketRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		listing, err := svc.ListTicket(r.Context(), app.ListTicketInput{
			Seller:   caller,
			TicketID: id,
			Price:    req.Price,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newListingResponse(listing))
	}
}

type listTicketRequest struct {
	Price domain.Amount `json:"price"`
}

func HandleCancelListing(svc ListingCanceler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ticketID")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		if err := svc.CancelListing(r.Context(), caller, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandlePurchaseListing buys an active listing for the caller.
func HandlePurchaseListing(svc ListingPurchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "ticketID")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req paymentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		sale, err := svc.PurchaseListing(r.Context(), app.PurchaseListingInput{
			Buyer:    caller,
			TicketID: id,
			Payment:  req.Payment,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, saleResponse{
			Listing:        newListingResponse(sale.Listing),
			Buyer:          caller,
			Royalty:        sale.Royalty,
			SellerProceeds: sale.SellerProceeds,
			Refund:         sale.Refund,
		})
	}
}

func HandleMarketInfo(svc MarketInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, marketInfoResponse{
			Registry:           svc.RegistryAddress(),
			RoyaltyBeneficiary: svc.RoyaltyBeneficiary(),
		})
	}
}

type listingResponse struct {
	TicketID int64          `json:"ticket_id"`
	Seller   domain.Account `json:"seller"`
	Price    domain.Amount  `json:"price"`
	Active   bool           `json:"active"`
}

func newListingResponse(l domain.Listing) listingResponse {
	return listingResponse{
		TicketID: l.TicketID,
		Seller:   l.Seller,
		Price:    l.Price,
		Active:   l.Active,
	}
}

type saleResponse struct {
	Listing        listingResponse `json:"listing"`
	Buyer          domain.Account  `json:"buyer"`
	Royalty        domain.Amount   `json:"royalty"`
	SellerProceeds domain.Amount   `json:"seller_proceeds"`
	Refund         domain.Amount   `json:"refund"`
}

type marketInfoResponse struct {
	Registry           domain.Account `json:"registry"`
	RoyaltyBeneficiary domain.Account `json:"royalty_beneficiary"`
}
