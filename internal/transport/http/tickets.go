package http

import (
	"context"
	"net/http"

	"github.com/gurmukh6912/token-entry/internal/app"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

type TicketReader interface {
	GetTicket(ctx context.Context, id int64) (domain.Ticket, error)
	IsTicketValid(ctx context.Context, ticketID int64) (bool, error)
}

type TicketUser interface {
	UseTicket(ctx context.Context, caller domain.Account, ticketID int64) error
}

type TicketTransferer interface {
	TransferTicket(ctx context.Context, in app.TransferTicketInput) error
}

// TicketApprover covers per-ticket and operator-wide approvals.
type TicketApprover interface {
	Approve(ctx context.Context, caller domain.Account, ticketID int64, operator domain.Account) error
	SetApprovalForAll(ctx context.Context, caller, operator domain.Account, approved bool) error
}

// CustodyManager exposes the registry's primary-sale proceeds.
type CustodyManager interface {
	CustodyBalance(ctx context.Context) (domain.Amount, error)
	Withdraw(ctx context.Context, caller domain.Account) (domain.Amount, error)
}

func HandleGetTicket(svc TicketReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		ticket, err := svc.GetTicket(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newTicketResponse(ticket))
	}
}

// HandleTicketValidity reports whether a ticket admits entry right now.
// Unknown tickets are reported invalid.
func HandleTicketValidity(svc TicketReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		valid, err := svc.IsTicketValid(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, validityResponse{TicketID: id, Valid: valid})
	}
}

func HandleUseTicket(svc TicketUser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		if err := svc.UseTicket(r.Context(), caller, id); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleTransferTicket moves a ticket. From defaults to the caller.
func HandleTransferTicket(svc TicketTransferer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req transferTicketRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		to, err := domain.ParseAccount(req.To)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		from := caller
		if req.From != "" {
			if from, err = domain.ParseAccount(req.From); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}

		err = svc.TransferTicket(r.Context(), app.TransferTicketInput{
			Caller:   caller,
			TicketID: id,
			From:     from,
			To:       to,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type transferTicketRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// HandleApproveTicket sets the single-ticket approval. An empty operator
// clears it.
func HandleApproveTicket(svc TicketApprover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req approveTicketRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		var operator domain.Account
		if req.Operator != "" {
			var err error
			if operator, err = domain.ParseAccount(req.Operator); err != nil {
				writeServiceError(w, r, err)
				return
			}
		}
		if err := svc.Approve(r.Context(), caller, id, operator); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type approveTicketRequest struct {
	Operator string `json:"operator"`
}

func HandleSetOperator(svc TicketApprover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := pathAccount(w, r, "operator")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req setOperatorRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Approved == nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "approved is required")
			return
		}
		if err := svc.SetApprovalForAll(r.Context(), caller, operator, *req.Approved); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type setOperatorRequest struct {
	Approved *bool `json:"approved"`
}

func HandleGetCustody(svc CustodyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		balance, err := svc.CustodyBalance(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, amountResponse{Amount: balance})
	}
}

// HandleWithdraw sweeps custody to the calling admin.
func HandleWithdraw(svc CustodyManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		amount, err := svc.Withdraw(r.Context(), caller)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, withdrawalResponse{Account: caller, Amount: amount})
	}
}

type ticketResponse struct {
	ID            int64          `json:"id"`
	EventID       int64          `json:"event_id"`
	Owner         domain.Account `json:"owner"`
	PurchasePrice domain.Amount  `json:"purchase_price"`
	Used          bool           `json:"used"`
	Approved      domain.Account `json:"approved,omitempty"`
}

func newTicketResponse(t domain.Ticket) ticketResponse {
	return ticketResponse{
		ID:            t.ID,
		EventID:       t.EventID,
		Owner:         t.Owner,
		PurchasePrice: t.PurchasePrice,
		Used:          t.Used,
		Approved:      t.Approved,
	}
}

type validityResponse struct {
	TicketID int64 `json:"ticket_id"`
	Valid    bool  `json:"valid"`
}

type amountResponse struct {
	Amount domain.Amount `json:"amount"`
}

type withdrawalResponse struct {
	Account domain.Account `json:"account"`
	Amount  domain.Amount  `json:"amount"`
}
