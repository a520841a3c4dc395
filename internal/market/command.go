package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Call is the host-provided envelope of a single serialized call: who sent
// it, the funds attached to it, and the host's notion of current time.
type Call struct {
	Sender  string
	Payment *Coin
	Now     time.Time
}

// Command is the closed set of marketplace operations. One handler exists
// per variant; the API layer validates commands structurally before they
// reach the engine.
type Command interface {
	Name() string
	isCommand()
}

// UpdateParams mutates marketplace parameters. Nil fields are unchanged.
// Operator-only.
type UpdateParams struct {
	FeePercent    *decimal.Decimal
	AskExpiry     *ExpiryRange
	BidExpiry     *ExpiryRange
	AuctionExpiry *ExpiryRange
	Operators     []string
	MinPrice      *decimal.Decimal
}

// SetAsk lists a token at a fixed price, moving it into market custody on
// first listing.
type SetAsk struct {
	TokenID        string
	Price          Coin
	FundsRecipient string
	ReservedFor    string
	ExpiresAt      time.Time
}

// RemoveAsk delists a token and returns custody to the seller.
type RemoveAsk struct {
	TokenID string
}

// SetBid escrows a fixed-price offer on one token; it fills immediately
// against a qualifying ask.
type SetBid struct {
	TokenID   string
	Price     Coin
	ExpiresAt time.Time
}

// RemoveBid withdraws the sender's bid and refunds its escrow.
type RemoveBid struct {
	TokenID string
}

// AcceptBid sells the token to an existing bidder.
type AcceptBid struct {
	TokenID string
	Bidder  string
}

// SetCollectionBid escrows a standing multi-unit offer across the
// collection.
type SetCollectionBid struct {
	Units     uint32
	Price     Coin
	ExpiresAt time.Time
}

// RemoveCollectionBid withdraws the sender's collection bid and refunds the
// remaining escrow.
type RemoveCollectionBid struct{}

// AcceptCollectionBid sells one token into a collection bid, consuming one
// unit of it.
type AcceptCollectionBid struct {
	TokenID string
	Bidder  string
}

// SetAuction opens a reserve-gated auction, moving the token into market
// custody.
type SetAuction struct {
	TokenID        string
	StartingPrice  Coin
	ReservePrice   *Coin
	FundsRecipient string
	ExpiresAt      time.Time
}

// CloseAuction ends an auction, either selling to the highest live bidder
// or returning the token.
type CloseAuction struct {
	TokenID          string
	AcceptHighestBid bool
}

func (UpdateParams) Name() string        { return "update-params" }
func (SetAsk) Name() string              { return "set-ask" }
func (RemoveAsk) Name() string           { return "remove-ask" }
func (SetBid) Name() string              { return "set-bid" }
func (RemoveBid) Name() string           { return "remove-bid" }
func (AcceptBid) Name() string           { return "accept-bid" }
func (SetCollectionBid) Name() string    { return "set-collection-bid" }
func (RemoveCollectionBid) Name() string { return "remove-collection-bid" }
func (AcceptCollectionBid) Name() string { return "accept-collection-bid" }
func (SetAuction) Name() string          { return "set-auction" }
func (CloseAuction) Name() string        { return "close-auction" }

func (UpdateParams) isCommand()        {}
func (SetAsk) isCommand()              {}
func (RemoveAsk) isCommand()           {}
func (SetBid) isCommand()              {}
func (RemoveBid) isCommand()           {}
func (AcceptBid) isCommand()           {}
func (SetCollectionBid) isCommand()    {}
func (RemoveCollectionBid) isCommand() {}
func (AcceptCollectionBid) isCommand() {}
func (SetAuction) isCommand()          {}
func (CloseAuction) isCommand()        {}
