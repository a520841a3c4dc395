// Package ledger defines the external collaborators the marketplace engine
// settles against: the token ledger holding NFT ownership and the bank
// moving the settlement currency. The engine never calls them directly
// during a handler; it stages transfer intents and applies them as one
// compensated batch alongside the registry commit.
package ledger

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownToken is returned for token ids the ledger has never minted.
	ErrUnknownToken = errors.New("ledger: unknown token")
	// ErrInsufficientFunds is returned when a transfer exceeds the sender's
	// balance.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
)

// TokenLedger is the token-ownership collaborator. Transfer moves the token
// from whoever currently owns it, mirroring an operator-approved NFT
// transfer.
type TokenLedger interface {
	OwnerOf(ctx context.Context, tokenID string) (string, error)
	Transfer(ctx context.Context, tokenID, to string) error
}

// Bank is the currency-transfer collaborator.
type Bank interface {
	Transfer(ctx context.Context, from, to, denom string, amount decimal.Decimal) error
	Balance(ctx context.Context, addr, denom string) (decimal.Decimal, error)
}
