// Package market implements the matching and settlement engine of the NFT
// marketplace: parameter store, ask/bid/collection-bid/auction registries,
// validation, matching and fee-split settlement. Execution is fully
// serialized; every call commits all of its registry writes and transfers
// or none of them.
package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// timeLayout renders expiries in events and errors.
const timeLayout = time.RFC3339

// Coin is an amount of a single currency.
type Coin struct {
	Denom  string          `json:"denom"`
	Amount decimal.Decimal `json:"amount"`
}

// NewCoin builds a coin.
func NewCoin(denom string, amount decimal.Decimal) Coin {
	return Coin{Denom: denom, Amount: amount}
}

func (c Coin) String() string {
	return fmt.Sprintf("%s%s", c.Amount, c.Denom)
}

// ExpiryRange bounds how far in the future a listing may expire, relative
// to its creation time.
type ExpiryRange struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
}

// Validate checks the range itself.
func (r ExpiryRange) Validate() error {
	if r.Min <= 0 || r.Max < r.Min {
		return fmt.Errorf("invalid expiry range [%s, %s]", r.Min, r.Max)
	}
	return nil
}

// Contains reports whether a proposed expiry lies within the range at the
// given time.
func (r ExpiryRange) Contains(now, expiresAt time.Time) bool {
	d := expiresAt.Sub(now)
	return d >= r.Min && d <= r.Max
}

// Params is the marketplace-wide configuration. Mutated only by operators.
type Params struct {
	// Collection is the address of the token ledger this marketplace
	// trades on.
	Collection string `json:"collection"`
	// Denom is the settlement currency.
	Denom string `json:"denom"`
	// Collector receives the marketplace's cut of each sale.
	Collector string `json:"collector"`
	// FeePercent is the trading fee in percent, within [0, 100].
	FeePercent decimal.Decimal `json:"fee_percent"`

	AskExpiry     ExpiryRange `json:"ask_expiry"`
	BidExpiry     ExpiryRange `json:"bid_expiry"`
	AuctionExpiry ExpiryRange `json:"auction_expiry"`

	Operators []string        `json:"operators"`
	MinPrice  decimal.Decimal `json:"min_price"`
}

// Validate checks params at instantiation and after updates.
func (p Params) Validate() error {
	if p.FeePercent.IsNegative() || p.FeePercent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("fee percent %s outside [0, 100]", p.FeePercent)
	}
	for _, r := range []ExpiryRange{p.AskExpiry, p.BidExpiry, p.AuctionExpiry} {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// IsOperator reports whether addr is in the operator set.
func (p Params) IsOperator(addr string) bool {
	for _, op := range p.Operators {
		if op == addr {
			return true
		}
	}
	return false
}

// Ask is a seller's fixed-price listing. The token sits in market custody
// while the ask is live.
type Ask struct {
	TokenID string `json:"token_id"`
	Seller  string `json:"seller"`
	Price   Coin   `json:"price"`
	// FundsRecipient, when set, receives the sale proceeds instead of the
	// seller.
	FundsRecipient string `json:"funds_recipient,omitempty"`
	// ReservedFor, when set, restricts matching to a single buyer.
	ReservedFor string    `json:"reserved_for,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Recipient is the address paid on sale.
func (a Ask) Recipient() string {
	if a.FundsRecipient != "" {
		return a.FundsRecipient
	}
	return a.Seller
}

// IsExpired reports whether the ask has lapsed.
func (a Ask) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}

// Bid is a buyer's escrowed fixed-price offer on one token. At most one
// live bid exists per (token, bidder).
type Bid struct {
	TokenID   string    `json:"token_id"`
	Bidder    string    `json:"bidder"`
	Price     Coin      `json:"price"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsExpired reports whether the bid has lapsed.
func (b Bid) IsExpired(now time.Time) bool {
	return !now.Before(b.ExpiresAt)
}

// CollectionBid is a standing escrowed offer for Units tokens of the
// collection at a fixed per-unit price. Keyed by bidder; escrow is
// price x units, decremented one unit per fill.
type CollectionBid struct {
	Bidder    string    `json:"bidder"`
	Units     uint32    `json:"units"`
	Price     Coin      `json:"price"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TotalCost is the escrow covering every remaining unit.
func (c CollectionBid) TotalCost() decimal.Decimal {
	return c.Price.Amount.Mul(decimal.NewFromInt(int64(c.Units)))
}

// IsExpired reports whether the collection bid has lapsed.
func (c CollectionBid) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Auction is a seller-run listing collecting competing bids, optionally
// gated by a reserve price. The token sits in market custody until close.
type Auction struct {
	TokenID        string    `json:"token_id"`
	Seller         string    `json:"seller"`
	StartingPrice  Coin      `json:"starting_price"`
	ReservePrice   *Coin     `json:"reserve_price,omitempty"`
	FundsRecipient string    `json:"funds_recipient,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Recipient is the address paid when the auction sells.
func (a Auction) Recipient() string {
	if a.FundsRecipient != "" {
		return a.FundsRecipient
	}
	return a.Seller
}

// IsExpired reports whether the auction has lapsed.
func (a Auction) IsExpired(now time.Time) bool {
	return !now.Before(a.ExpiresAt)
}
