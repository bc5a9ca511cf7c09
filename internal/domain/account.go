package domain

import "strings"

// Account identifies a wallet or component address.
type Account string

// Amount is a count of the smallest currency unit.
type Amount int64

// ParseAccount normalizes an account identifier. Addresses are compared
// case-insensitively.
func ParseAccount(raw string) (Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidAccount
	}
	return Account(strings.ToLower(raw)), nil
}

func (a Account) String() string {
	return string(a)
}

// Transfer is a single movement of funds between two accounts.
type Transfer struct {
	From   Account
	To     Account
	Amount Amount
}
