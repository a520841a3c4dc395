package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// MemoryBank is an in-process Bank used by tests and sandboxed deployments.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[string]map[string]decimal.Decimal
}

// NewMemoryBank creates an empty bank.
func NewMemoryBank() *MemoryBank {
	return &MemoryBank{balances: make(map[string]map[string]decimal.Decimal)}
}

// Mint credits an address, bypassing transfer checks. Test setup only.
func (b *MemoryBank) Mint(addr, denom string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(addr, denom, amount)
}

// Transfer moves amount between addresses, failing on insufficient funds or
// a non-positive amount.
func (b *MemoryBank) Transfer(ctx context.Context, from, to, denom string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("bank: negative transfer %s%s", amount, denom)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	have := b.balances[from][denom]
	if have.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s%s, need %s%s", ErrInsufficientFunds, from, have, denom, amount, denom)
	}
	b.balances[from][denom] = have.Sub(amount)
	b.credit(to, denom, amount)
	return nil
}

// Balance reports an address balance; unknown addresses hold zero.
func (b *MemoryBank) Balance(ctx context.Context, addr, denom string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr][denom], nil
}

func (b *MemoryBank) credit(addr, denom string, amount decimal.Decimal) {
	if b.balances[addr] == nil {
		b.balances[addr] = make(map[string]decimal.Decimal)
	}
	b.balances[addr][denom] = b.balances[addr][denom].Add(amount)
}

// MemoryTokenLedger is an in-process TokenLedger.
type MemoryTokenLedger struct {
	mu     sync.Mutex
	owners map[string]string
}

// NewMemoryTokenLedger creates an empty token ledger.
func NewMemoryTokenLedger() *MemoryTokenLedger {
	return &MemoryTokenLedger{owners: make(map[string]string)}
}

// Mint assigns a token to an owner. Test setup only.
func (l *MemoryTokenLedger) Mint(tokenID, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[tokenID] = owner
}

// OwnerOf reports the current owner of a token.
func (l *MemoryTokenLedger) OwnerOf(ctx context.Context, tokenID string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[tokenID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	return owner, nil
}

// Transfer reassigns a token to a new owner.
func (l *MemoryTokenLedger) Transfer(ctx context.Context, tokenID, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.owners[tokenID]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownToken, tokenID)
	}
	l.owners[tokenID] = to
	return nil
}
