package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Aidin1998/nftmarket/internal/market"
)

// CoinDTO is the wire form of a coin.
type CoinDTO struct {
	Denom  string          `json:"denom" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required,posdec"`
}

func (c CoinDTO) toCoin() market.Coin {
	return market.NewCoin(c.Denom, c.Amount)
}

// callFields are shared by every mutating request: the acting account and
// the funds it attaches, if any.
type callFields struct {
	Sender  string   `json:"sender" binding:"required"`
	Payment *CoinDTO `json:"payment,omitempty"`
}

func (f callFields) toCall(now time.Time) market.Call {
	call := market.Call{Sender: f.Sender, Now: now}
	if f.Payment != nil {
		coin := f.Payment.toCoin()
		call.Payment = &coin
	}
	return call
}

type updateParamsRequest struct {
	callFields
	FeePercent    *decimal.Decimal `json:"fee_percent,omitempty"`
	AskExpiry     *expiryRangeDTO  `json:"ask_expiry,omitempty"`
	BidExpiry     *expiryRangeDTO  `json:"bid_expiry,omitempty"`
	AuctionExpiry *expiryRangeDTO  `json:"auction_expiry,omitempty"`
	Operators     []string         `json:"operators,omitempty"`
	MinPrice      *decimal.Decimal `json:"min_price,omitempty"`
}

type expiryRangeDTO struct {
	MinSeconds int64 `json:"min_seconds" binding:"required,gt=0"`
	MaxSeconds int64 `json:"max_seconds" binding:"required,gt=0"`
}

func (r expiryRangeDTO) toRange() market.ExpiryRange {
	return market.ExpiryRange{
		Min: time.Duration(r.MinSeconds) * time.Second,
		Max: time.Duration(r.MaxSeconds) * time.Second,
	}
}

type setAskRequest struct {
	callFields
	Price          CoinDTO   `json:"price" binding:"required"`
	FundsRecipient string    `json:"funds_recipient,omitempty"`
	ReservedFor    string    `json:"reserved_for,omitempty"`
	ExpiresAt      time.Time `json:"expires_at" binding:"required"`
}

type setBidRequest struct {
	callFields
	Price     CoinDTO   `json:"price" binding:"required"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

type acceptBidRequest struct {
	callFields
	Bidder string `json:"bidder" binding:"required"`
}

type setCollectionBidRequest struct {
	callFields
	Units     uint32    `json:"units" binding:"required,gte=1"`
	Price     CoinDTO   `json:"price" binding:"required"`
	ExpiresAt time.Time `json:"expires_at" binding:"required"`
}

type acceptCollectionBidRequest struct {
	callFields
	TokenID string `json:"token_id" binding:"required"`
}

type setAuctionRequest struct {
	callFields
	StartingPrice  CoinDTO   `json:"starting_price" binding:"required"`
	ReservePrice   *CoinDTO  `json:"reserve_price,omitempty"`
	FundsRecipient string    `json:"funds_recipient,omitempty"`
	ExpiresAt      time.Time `json:"expires_at" binding:"required"`
}

type closeAuctionRequest struct {
	callFields
	AcceptHighestBid bool `json:"accept_highest_bid"`
}

type membersRequest struct {
	Sender  string   `json:"sender" binding:"required"`
	Members []string `json:"members" binding:"required,min=1"`
}

type windowTimeRequest struct {
	Sender string    `json:"sender" binding:"required"`
	Time   time.Time `json:"time" binding:"required"`
}

type limitRequest struct {
	Sender string `json:"sender" binding:"required"`
	Limit  uint32 `json:"limit" binding:"required,gte=1"`
}

// eventsResponse wraps the events emitted by a committed operation.
type eventsResponse struct {
	Events []market.Event `json:"events"`
}
