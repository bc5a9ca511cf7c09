package domain

import "time"

type NotificationKind string

const (
	KindEventCreated       NotificationKind = "event_created"
	KindEventStatusChanged NotificationKind = "event_status_changed"
	KindTicketMinted       NotificationKind = "ticket_minted"
	KindTicketUsed         NotificationKind = "ticket_used"
	KindTicketTransferred  NotificationKind = "ticket_transferred"
	KindApproval           NotificationKind = "approval"
	KindApprovalForAll     NotificationKind = "approval_for_all"
	KindFundsWithdrawn     NotificationKind = "funds_withdrawn"
	KindFundsDeposited     NotificationKind = "funds_deposited"
	KindTicketListed       NotificationKind = "ticket_listed"
	KindTicketSold         NotificationKind = "ticket_sold"
	KindListingCanceled    NotificationKind = "listing_canceled"
	KindRegistryUpdated    NotificationKind = "registry_updated"
	KindRoleGranted        NotificationKind = "role_granted"
	KindRoleRevoked        NotificationKind = "role_revoked"
)

// Notification describes a committed state transition. Fields that do not
// apply to a kind are left zero.
type Notification struct {
	ID           string           `cbor:"id"`
	Kind         NotificationKind `cbor:"kind"`
	Source       Account          `cbor:"source"`
	EventID      int64            `cbor:"event_id,omitempty"`
	TicketID     int64            `cbor:"ticket_id,omitempty"`
	Account      Account          `cbor:"account,omitempty"`
	Counterparty Account          `cbor:"counterparty,omitempty"`
	Amount       Amount           `cbor:"amount,omitempty"`
	Role         Role             `cbor:"role,omitempty"`
	Flag         bool             `cbor:"flag,omitempty"`
	At           time.Time        `cbor:"at"`
}
