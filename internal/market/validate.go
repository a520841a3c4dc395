package market

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// maxPrice bounds listing amounts so the fixed-width segment of the price
// index stays fixed-width: anything at or above 10^21 would shift to more
// than priceKeyDigits digits and break the lexicographic ordering.
var maxPrice = decimal.New(1, priceKeyDigits-priceKeyScale)

// validatePrice enforces the shared listing-price rules: settlement
// currency, positive amount, at or above the price floor, below the index
// ceiling.
func validatePrice(op string, price Coin, p Params) error {
	if price.Denom != p.Denom {
		return errValidation(op, "price denomination mismatch", p.Denom, price.Denom)
	}
	if !price.Amount.IsPositive() {
		return errValidation(op, "price must be positive", "> 0", price.Amount.String())
	}
	if price.Amount.LessThan(p.MinPrice) {
		return errValidation(op, "price below floor", fmt.Sprintf(">= %s", p.MinPrice), price.Amount.String())
	}
	if price.Amount.GreaterThanOrEqual(maxPrice) {
		return errValidation(op, "price exceeds maximum", fmt.Sprintf("< %s", maxPrice), price.Amount.String())
	}
	return nil
}

// validateExpiry enforces the governing expiry range relative to now.
func validateExpiry(op string, r ExpiryRange, call Call, expiresAt time.Time) error {
	if !r.Contains(call.Now, expiresAt) {
		return errValidation(op, "expiry outside allowed range",
			fmt.Sprintf("now+[%s, %s]", r.Min, r.Max), expiresAt.Format(timeLayout))
	}
	return nil
}

// nonpayable rejects calls that attach funds to an operation that takes
// none.
func nonpayable(op string, call Call) error {
	if call.Payment != nil && !call.Payment.Amount.IsZero() {
		return errPayment(op, "operation accepts no funds", "no payment", call.Payment.String())
	}
	return nil
}

// mustPay requires exactly one attached payment in the settlement currency
// and returns its coin.
func mustPay(op string, call Call, denom string) (Coin, error) {
	if call.Payment == nil || call.Payment.Amount.IsZero() {
		return Coin{}, errPayment(op, "payment required", denom, "none")
	}
	if call.Payment.Denom != denom {
		return Coin{}, errPayment(op, "payment denomination mismatch", denom, call.Payment.Denom)
	}
	if call.Payment.Amount.IsNegative() {
		return Coin{}, errPayment(op, "negative payment", "> 0", call.Payment.Amount.String())
	}
	return *call.Payment, nil
}

// onlyOperator authorizes parameter mutation.
func onlyOperator(op string, call Call, p Params) error {
	if !p.IsOperator(call.Sender) {
		return errAuthorization(op, fmt.Sprintf("sender %s is not an operator", call.Sender))
	}
	return nil
}

// onlySeller authorizes record mutation by its stored seller or bidder.
func onlySeller(op, sender, seller string) error {
	if sender != seller {
		return errAuthorization(op, fmt.Sprintf("sender %s is not the seller", sender))
	}
	return nil
}

// onlyOwner authorizes by current token ownership on the ledger.
func (e *Engine) onlyOwner(ctx context.Context, op, sender, tokenID string) error {
	owner, err := e.tokens.OwnerOf(ctx, tokenID)
	if err != nil {
		return errStateConflict(op, fmt.Sprintf("token %s: %v", tokenID, err))
	}
	if owner != sender {
		return errAuthorization(op, fmt.Sprintf("sender %s does not own token %s", sender, tokenID))
	}
	return nil
}

// onlyOwnerOrSeller authorizes the current owner or, when an ask already
// custodies the token, its seller. askSeller is empty when no ask exists.
func (e *Engine) onlyOwnerOrSeller(ctx context.Context, op, sender, tokenID, askSeller string) error {
	if askSeller != "" && sender == askSeller {
		return nil
	}
	return e.onlyOwner(ctx, op, sender, tokenID)
}
