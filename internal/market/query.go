package market

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Pagination bounds for read queries.
const (
	QueryDefaultLimit = 25
	QueryMaxLimit     = 100
)

// BidCursor is an exclusive pagination cursor into a token's price-ordered
// bids: resume after this (price, bidder) pair.
type BidCursor struct {
	Price  decimal.Decimal `json:"price"`
	Bidder string          `json:"bidder"`
}

// QueryOptions controls the price-ordered bid read.
type QueryOptions struct {
	// Descending walks from the highest price down.
	Descending bool
	// FilterExpiry, when set, drops bids expired at that instant.
	FilterExpiry *time.Time
	// StartAfter resumes a previous page.
	StartAfter *BidCursor
	// Limit caps the page size; zero means QueryDefaultLimit, values above
	// QueryMaxLimit are clamped.
	Limit int
}

// BidsByTokenPrice reads a token's bids in price order. Used internally by
// auction closing and exposed to clients.
func (e *Engine) BidsByTokenPrice(ctx context.Context, tokenID string, opts QueryOptions) ([]Bid, error) {
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	return reg.bidsByTokenPrice(tokenID, opts)
}

// ParamsSnapshot reads the current marketplace parameters.
func (e *Engine) ParamsSnapshot(ctx context.Context) (Params, error) {
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	return reg.params()
}

// AskFor reads the live ask on a token, if any.
func (e *Engine) AskFor(ctx context.Context, tokenID string) (Ask, bool, error) {
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	return reg.ask(tokenID)
}

// AuctionFor reads the live auction on a token, if any.
func (e *Engine) AuctionFor(ctx context.Context, tokenID string) (Auction, bool, error) {
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	return reg.auction(tokenID)
}

// CollectionBidFor reads a bidder's standing collection bid, if any.
func (e *Engine) CollectionBidFor(ctx context.Context, bidder string) (CollectionBid, bool, error) {
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	return reg.collectionBid(bidder)
}
