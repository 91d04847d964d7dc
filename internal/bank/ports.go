// Package bank defines the ports toward the transaction provider. The HTTP
// layer and the report service only ever see these interfaces; the concrete
// provider lives in a subpackage chosen at startup.
package bank

import (
	"context"
	"time"

	"budgeteer/internal/core"
)

// LinkedItem is the credential pair handed back by a public-token exchange.
type LinkedItem struct {
	AccessToken string
	ItemID      string
}

// Linker drives the account-linking handshake.
type Linker interface {
	// CreateLinkToken issues a short-lived token the client uses to start
	// the link flow for the given user.
	CreateLinkToken(ctx context.Context, userID string) (string, error)

	// ExchangePublicToken trades the public token from a completed link
	// flow for a long-lived access token.
	ExchangePublicToken(ctx context.Context, publicToken string) (LinkedItem, error)
}

// TransactionSource fetches raw transactions for a linked item.
type TransactionSource interface {
	FetchTransactions(ctx context.Context, accessToken string, start, end time.Time) ([]core.Transaction, error)
}

// Client is the full provider surface.
type Client interface {
	Linker
	TransactionSource
}

// Type selects the provider implementation.
type Type string

const (
	TypePlaid  Type = "plaid"
	TypeMemory Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the bank type is known
func (t Type) IsValid() bool {
	switch t {
	case TypePlaid, TypeMemory:
		return true
	default:
		return false
	}
}
