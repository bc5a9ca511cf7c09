package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gurmukh6912/token-entry/internal/app"
	"github.com/gurmukh6912/token-entry/internal/domain"
)

// EventCreator is the minimal interface needed to create events.
type EventCreator interface {
	CreateEvent(ctx context.Context, in app.CreateEventInput) (domain.Event, error)
}

// EventReader serves event queries.
type EventReader interface {
	GetEvent(ctx context.Context, id int64) (domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
	PurchaseCount(ctx context.Context, eventID int64, buyer domain.Account) (int64, error)
}

type EventStatusSetter interface {
	SetEventStatus(ctx context.Context, caller domain.Account, eventID int64, active bool) error
}

type TicketPurchaser interface {
	PurchaseTicket(ctx context.Context, in app.PurchaseTicketInput) (domain.Ticket, error)
}

// HandleCreateEvent returns an HTTP handler for creating events.
func HandleCreateEvent(svc EventCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req createEventRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, err.Error())
			return
		}

		event, err := svc.CreateEvent(r.Context(), app.CreateEventInput{
			Caller:      caller,
			Name:        req.Name,
			UnitPrice:   req.UnitPrice,
			TotalSupply: req.TotalSupply,
			MaxPerBuyer: req.MaxPerBuyer,
			StartTime:   req.StartTime,
			EndTime:     req.EndTime,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newEventResponse(event))
	}
}

type createEventRequest struct {
	Name        string        `json:"name"`
	UnitPrice   domain.Amount `json:"unit_price"`
	TotalSupply int64         `json:"total_supply"`
	MaxPerBuyer int64         `json:"max_per_buyer"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
}

func (r createEventRequest) validate() error {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return errors.New("start_time and end_time are required")
	}
	return nil
}

// HandleListEvents returns every event ordered by id.
func HandleListEvents(svc EventReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		events, err := svc.ListEvents(r.Context())
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		resp := listEventsResponse{Events: make([]eventResponse, 0, len(events))}
		for _, e := range events {
			resp.Events = append(resp.Events, newEventResponse(e))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleGetEvent(svc EventReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		event, err := svc.GetEvent(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newEventResponse(event))
	}
}

// HandlePurchaseCount reports how many tickets an account bought for an event.
func HandlePurchaseCount(svc EventReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		account, ok := pathAccount(w, r, "account")
		if !ok {
			return
		}
		n, err := svc.PurchaseCount(r.Context(), id, account)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, purchaseCountResponse{
			EventID:   id,
			Account:   account,
			Purchased: n,
		})
	}
}

func HandleSetEventStatus(svc EventStatusSetter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		caller, ok := callerFrom(w, r)
		if !ok {
			return
		}
		var req setEventStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Active == nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "active is required")
			return
		}
		if err := svc.SetEventStatus(r.Context(), caller, id, *req.Active); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type setEventStatusRequest struct {
	Active *bool `json:"active"`
}

// HandlePurchaseTicket mints a ticket for the caller, who pays from their wallet.
func HandlePurchaseTicket(svc TicketPurchaser) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
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

		ticket, err := svc.PurchaseTicket(r.Context(), app.PurchaseTicketInput{
			Buyer:   caller,
			EventID: id,
			Payment: req.Payment,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, newTicketResponse(ticket))
	}
}

type paymentRequest struct {
	Payment domain.Amount `json:"payment"`
}

type eventResponse struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	UnitPrice   domain.Amount `json:"unit_price"`
	TotalSupply int64         `json:"total_supply"`
	TicketsSold int64         `json:"tickets_sold"`
	MaxPerBuyer int64         `json:"max_per_buyer"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Active      bool          `json:"active"`
}

func newEventResponse(e domain.Event) eventResponse {
	return eventResponse{
		ID:          e.ID,
		Name:        e.Name,
		UnitPrice:   e.UnitPrice,
		TotalSupply: e.TotalSupply,
		TicketsSold: e.TicketsSold,
		MaxPerBuyer: e.MaxPerBuyer,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		Active:      e.Active,
	}
}

type listEventsResponse struct {
	Events []eventResponse `json:"events"`
}

type purchaseCountResponse struct {
	EventID   int64          `json:"event_id"`
	Account   domain.Account `json:"account"`
	Purchased int64          `json:"purchased"`
}
