package http

import (
	"context"
	"net/http"
)

// Registry is the registry surface exposed over HTTP.
type Registry interface {
	EventCreator
	EventReader
	EventStatusSetter
	TicketPurchaser
	TicketReader
	TicketUser
	TicketTransferer
	TicketApprover
	CustodyManager
}

// Market is the resale market surface exposed over HTTP.
type Market interface {
	ListingReader
	TicketLister
	ListingCanceler
	ListingPurchaser
	MarketInfo
}

// Services wires handlers to the application layer. Nil optional fields
// leave their routes unregistered.
type Services struct {
	Registry      Registry
	Market        Market
	Wallet        Wallet
	Roles         RoleManagers
	Notifications NotificationFeed
	Ready         func(ctx context.Context) error
}

// NewRouter registers every route on a fresh mux. Unknown routes get a JSON 404.
func NewRouter(s Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", HealthHandler)
	mux.Handle("GET /ready", HandleReady(s.Ready))

	if s.Registry != nil {
		mux.Handle("GET /events", HandleListEvents(s.Registry))
		mux.Handle("POST /events", HandleCreateEvent(s.Registry))
		mux.Handle("GET /events/{id}", HandleGetEvent(s.Registry))
		mux.Handle("PUT /events/{id}/status", HandleSetEventStatus(s.Registry))
		mux.Handle("POST /events/{id}/tickets", HandlePurchaseTicket(s.Registry))
		mux.Handle("GET /events/{id}/purchases/{account}", HandlePurchaseCount(s.Registry))

		mux.Handle("GET /tickets/{id}", HandleGetTicket(s.Registry))
		mux.Handle("GET /tickets/{id}/validity", HandleTicketValidity(s.Registry))
		mux.Handle("POST /tickets/{id}/use", HandleUseTicket(s.Registry))
		mux.Handle("POST /tickets/{id}/transfer", HandleTransferTicket(s.Registry))
		mux.Handle("PUT /tickets/{id}/approval", HandleApproveTicket(s.Registry))
		mux.Handle("PUT /operators/{operator}", HandleSetOperator(s.Registry))

		mux.Handle("GET /custody", HandleGetCustody(s.Registry))
		mux.Handle("POST /withdrawals", HandleWithdraw(s.Registry))
	}

	if s.Market != nil {
		mux.Handle("GET /market", HandleMarketInfo(s.Market))
		mux.Handle("GET /listings/{ticketID}", HandleGetListing(s.Market))
		mux.Handle("PUT /listings/{ticketID}", HandleListTicket(s.Market))
		mux.Handle("DELETE /listings/{ticketID}", HandleCancelListing(s.Market))
		mux.Handle("POST /listings/{ticketID}/purchase", HandlePurchaseListing(s.Market))
	}

	if s.Wallet != nil {
		mux.Handle("GET /wallets/{account}", HandleGetWallet(s.Wallet))
		mux.Handle("POST /wallets/{account}/deposits", HandleDeposit(s.Wallet))
	}

	if len(s.Roles) > 0 {
		mux.Handle("GET /roles/{scope}/{role}/{account}", HandleGetRole(s.Roles))
		mux.Handle("PUT /roles/{scope}/{role}/{account}", HandleGrantRole(s.Roles))
		mux.Handle("DELETE /roles/{scope}/{role}/{account}", HandleRevokeRole(s.Roles))
		mux.Handle("POST /roles/{scope}/admin-transfers", HandleTransferAdmin(s.Roles))
	}

	if s.Notifications != nil {
		mux.Handle("GET /notifications", HandleListNotifications(s.Notifications))
	}

	mux.Handle("/", NotFoundHandler())
	return mux
}
