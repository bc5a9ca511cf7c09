package domain

import "errors"

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnknownRole  = errors.New("unknown role")
	ErrUnknownScope = errors.New("unknown scope")
	ErrLastAdmin    = errors.New("cannot remove the last admin")
)

var (
	ErrUnknownEvent        = errors.New("unknown event")
	ErrInvalidEvent        = errors.New("invalid event parameters")
	ErrInvalidSchedule     = errors.New("end time must be after start time")
	ErrEventInactive       = errors.New("event is not active")
	ErrOutsideWindow       = errors.New("event is outside its sale window")
	ErrSoldOut             = errors.New("event is sold out")
	ErrBuyerLimitExceeded  = errors.New("exceeded max tickets per buyer")
	ErrInsufficientPayment = errors.New("insufficient payment")
)

var (
	ErrUnknownTicket      = errors.New("unknown ticket")
	ErrAlreadyUsed        = errors.New("ticket already used")
	ErrNotOwner           = errors.New("not the ticket owner")
	ErrNotOwnerOrApproved = errors.New("caller is not owner nor approved")
)

var (
	ErrUnknownListing      = errors.New("unknown listing")
	ErrPriceTooHigh        = errors.New("price exceeds maximum allowed")
	ErrTicketNotValid      = errors.New("ticket is not valid for resale")
	ErrTicketNoLongerValid = errors.New("ticket is no longer valid")
	ErrNoActiveListing     = errors.New("no active listing for ticket")
	ErrNotSellerOrAdmin    = errors.New("not the seller or admin")
	ErrMarketNotApproved   = errors.New("market is not approved to transfer ticket")
	ErrForeignRegistry     = errors.New("registry does not share the market's storage")
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidAccount    = errors.New("invalid account")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
