package ledger

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestApplyAll_AllSucceed(t *testing.T) {
	ctx := context.Background()
	bank := NewMemoryBank()
	tokens := NewMemoryTokenLedger()
	bank.Mint("escrow", "uust", dec("100"))
	tokens.Mint("7", "market")

	intents := []Intent{
		&CoinIntent{Bank: bank, From: "escrow", To: "seller", Denom: "uust", Amount: dec("98")},
		&CoinIntent{Bank: bank, From: "escrow", To: "collector", Denom: "uust", Amount: dec("2")},
		&TokenIntent{Ledger: tokens, TokenID: "7", To: "buyer"},
	}
	require.NoError(t, ApplyAll(ctx, intents))

	sellerBal, _ := bank.Balance(ctx, "seller", "uust")
	collectorBal, _ := bank.Balance(ctx, "collector", "uust")
	escrowBal, _ := bank.Balance(ctx, "escrow", "uust")
	assert.True(t, sellerBal.Equal(dec("98")))
	assert.True(t, collectorBal.Equal(dec("2")))
	assert.True(t, escrowBal.IsZero())

	owner, err := tokens.OwnerOf(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "buyer", owner)
}

func TestApplyAll_MidFailureRevertsAppliedIntents(t *testing.T) {
	ctx := context.Background()
	bank := NewMemoryBank()
	tokens := NewMemoryTokenLedger()
	bank.Mint("escrow", "uust", dec("50"))
	tokens.Mint("7", "market")

	intents := []Intent{
		&TokenIntent{Ledger: tokens, TokenID: "7", To: "buyer"},
		// Overdraws escrow, must fail.
		&CoinIntent{Bank: bank, From: "escrow", To: "seller", Denom: "uust", Amount: dec("60")},
	}
	err := ApplyAll(ctx, intents)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	// Token transfer was compensated.
	owner, err := tokens.OwnerOf(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "market", owner)
	escrowBal, _ := bank.Balance(ctx, "escrow", "uust")
	assert.True(t, escrowBal.Equal(dec("50")))
}

func TestTokenIntent_RevertRestoresPreviousOwner(t *testing.T) {
	ctx := context.Background()
	tokens := NewMemoryTokenLedger()
	tokens.Mint("9", "alice")

	intent := &TokenIntent{Ledger: tokens, TokenID: "9", To: "bob"}
	require.NoError(t, intent.Apply(ctx))
	require.NoError(t, intent.Revert(ctx))

	owner, err := tokens.OwnerOf(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)
}

func TestMemoryBank_RejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	bank := NewMemoryBank()
	bank.Mint("a", "uust", dec("10"))
	err := bank.Transfer(ctx, "a", "b", "uust", dec("11"))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	err = bank.Transfer(ctx, "a", "b", "uust", dec("10"))
	assert.NoError(t, err)
}
