package domain

// Ticket is a non-fungible admission right for one event.
type Ticket struct {
	ID            int64
	EventID       int64
	Owner         Account
	PurchasePrice Amount
	Used          bool
	// Approved may transfer this ticket on behalf of Owner until the next transfer.
	Approved Account
}

// Listing is an offer to resell a ticket at a fixed price.
type Listing struct {
	TicketID int64
	Seller   Account
	Price    Amount
	Active   bool
}
