package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Intent is a staged value or custody movement. Apply performs it; Revert
// compensates an already-applied intent when a later step of the same call
// fails.
type Intent interface {
	Apply(ctx context.Context) error
	Revert(ctx context.Context) error
	String() string
}

// CoinIntent stages a currency transfer.
type CoinIntent struct {
	Bank   Bank
	From   string
	To     string
	Denom  string
	Amount decimal.Decimal
}

func (i *CoinIntent) Apply(ctx context.Context) error {
	return i.Bank.Transfer(ctx, i.From, i.To, i.Denom, i.Amount)
}

func (i *CoinIntent) Revert(ctx context.Context) error {
	return i.Bank.Transfer(ctx, i.To, i.From, i.Denom, i.Amount)
}

func (i *CoinIntent) String() string {
	return fmt.Sprintf("coin %s%s %s->%s", i.Amount, i.Denom, i.From, i.To)
}

// TokenIntent stages a token custody transfer. The sending side is resolved
// at apply time, matching ledgers where the marketplace acts under an
// operator approval rather than naming the current holder.
type TokenIntent struct {
	Ledger  TokenLedger
	TokenID string
	To      string

	prevOwner string
}

func (i *TokenIntent) Apply(ctx context.Context) error {
	owner, err := i.Ledger.OwnerOf(ctx, i.TokenID)
	if err != nil {
		return err
	}
	if err := i.Ledger.Transfer(ctx, i.TokenID, i.To); err != nil {
		return err
	}
	i.prevOwner = owner
	return nil
}

func (i *TokenIntent) Revert(ctx context.Context) error {
	return i.Ledger.Transfer(ctx, i.TokenID, i.prevOwner)
}

func (i *TokenIntent) String() string {
	return fmt.Sprintf("token %s ->%s", i.TokenID, i.To)
}

// ApplyAll applies intents in order. On failure it reverts the already
// applied ones in reverse order and returns the original error; revert
// failures are joined so callers can surface an inconsistent ledger loudly.
func ApplyAll(ctx context.Context, intents []Intent) error {
	for n, intent := range intents {
		if err := intent.Apply(ctx); err != nil {
			revertErr := RevertAll(ctx, intents[:n])
			if revertErr != nil {
				return fmt.Errorf("apply %s: %w (revert also failed: %v)", intent, err, revertErr)
			}
			return fmt.Errorf("apply %s: %w", intent, err)
		}
	}
	return nil
}

// RevertAll compensates applied intents in reverse order.
func RevertAll(ctx context.Context, intents []Intent) error {
	var firstErr error
	for n := len(intents) - 1; n >= 0; n-- {
		if err := intents[n].Revert(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("revert %s: %w", intents[n], err)
		}
	}
	return firstErr
}
