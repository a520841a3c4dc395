package market

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Aidin1998/nftmarket/internal/storage"
)

// Persisted layout. Bids carry a secondary price-ranking index per token so
// auctions and clients can read them in price order.
const (
	keyParams           = "params"
	prefixAsk           = "ask/"
	prefixBid           = "bid/"
	prefixBidPrice      = "bidx/"
	prefixCollectionBid = "cbid/"
	prefixAuction       = "auction/"
)

// priceKeyDigits sizes the zero-padded price segment of index keys so that
// lexicographic order equals numeric order. 39 digits cover any amount
// below 10^21 at 18 decimal places.
const (
	priceKeyScale  = 18
	priceKeyDigits = 39
)

func askKey(tokenID string) []byte {
	return []byte(prefixAsk + tokenID)
}

func bidKey(tokenID, bidder string) []byte {
	return []byte(prefixBid + tokenID + "/" + bidder)
}

func bidPricePrefix(tokenID string) []byte {
	return []byte(prefixBidPrice + tokenID + "/")
}

func bidPriceKey(tokenID string, price decimal.Decimal, bidder string) []byte {
	return []byte(prefixBidPrice + tokenID + "/" + priceKeySegment(price) + "/" + bidder)
}

func collectionBidKey(bidder string) []byte {
	return []byte(prefixCollectionBid + bidder)
}

func auctionKey(tokenID string) []byte {
	return []byte(prefixAuction + tokenID)
}

// priceKeySegment renders a non-negative price as a fixed-width decimal
// string that sorts like the number.
func priceKeySegment(price decimal.Decimal) string {
	scaled := price.Shift(priceKeyScale).Truncate(0).String()
	if len(scaled) < priceKeyDigits {
		scaled = strings.Repeat("0", priceKeyDigits-len(scaled)) + scaled
	}
	return scaled
}

// registry is the typed view over one call's storage transaction.
type registry struct {
	tx storage.Tx
}

func (r *registry) params() (Params, error) {
	var p Params
	raw, err := r.tx.Get([]byte(keyParams))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return p, fmt.Errorf("marketplace parameters not initialized")
		}
		return p, err
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("corrupt params record: %w", err)
	}
	return p, nil
}

func (r *registry) setParams(p Params) error {
	return r.put([]byte(keyParams), p)
}

func (r *registry) hasParams() (bool, error) {
	return r.tx.Has([]byte(keyParams))
}

func (r *registry) ask(tokenID string) (Ask, bool, error) {
	var a Ask
	found, err := r.get(askKey(tokenID), &a)
	return a, found, err
}

func (r *registry) setAsk(a Ask) error {
	return r.put(askKey(a.TokenID), a)
}

func (r *registry) deleteAsk(tokenID string) error {
	return r.tx.Delete(askKey(tokenID))
}

func (r *registry) bid(tokenID, bidder string) (Bid, bool, error) {
	var b Bid
	found, err := r.get(bidKey(tokenID, bidder), &b)
	return b, found, err
}

// setBid stores the record and its price-index entry together.
func (r *registry) setBid(b Bid) error {
	if err := r.put(bidKey(b.TokenID, b.Bidder), b); err != nil {
		return err
	}
	return r.tx.Set(bidPriceKey(b.TokenID, b.Price.Amount, b.Bidder), []byte(b.Bidder))
}

func (r *registry) deleteBid(b Bid) error {
	if err := r.tx.Delete(bidKey(b.TokenID, b.Bidder)); err != nil {
		return err
	}
	return r.tx.Delete(bidPriceKey(b.TokenID, b.Price.Amount, b.Bidder))
}

func (r *registry) collectionBid(bidder string) (CollectionBid, bool, error) {
	var c CollectionBid
	found, err := r.get(collectionBidKey(bidder), &c)
	return c, found, err
}

func (r *registry) setCollectionBid(c CollectionBid) error {
	return r.put(collectionBidKey(c.Bidder), c)
}

func (r *registry) deleteCollectionBid(bidder string) error {
	return r.tx.Delete(collectionBidKey(bidder))
}

func (r *registry) auction(tokenID string) (Auction, bool, error) {
	var a Auction
	found, err := r.get(auctionKey(tokenID), &a)
	return a, found, err
}

func (r *registry) setAuction(a Auction) error {
	return r.put(auctionKey(a.TokenID), a)
}

func (r *registry) deleteAuction(tokenID string) error {
	return r.tx.Delete(auctionKey(tokenID))
}

// bidsByTokenPrice walks a token's price index. See QueryOptions for
// ordering, expiry filtering and pagination.
func (r *registry) bidsByTokenPrice(tokenID string, opts QueryOptions) ([]Bid, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = QueryDefaultLimit
	}
	if limit > QueryMaxLimit {
		limit = QueryMaxLimit
	}

	var cursor string
	if opts.StartAfter != nil {
		cursor = priceKeySegment(opts.StartAfter.Price) + "/" + opts.StartAfter.Bidder
	}

	prefix := bidPricePrefix(tokenID)
	var bids []Bid
	err := r.tx.Scan(prefix, opts.Descending, func(key, value []byte) (bool, error) {
		segment := string(key[len(prefix):])
		if cursor != "" {
			// Exclusive cursor bound.
			if !opts.Descending && segment <= cursor {
				return true, nil
			}
			if opts.Descending && segment >= cursor {
				return true, nil
			}
		}
		bid, found, err := r.bid(tokenID, string(value))
		if err != nil {
			return false, err
		}
		if !found {
			return false, fmt.Errorf("dangling price index entry %q", key)
		}
		if opts.FilterExpiry != nil && bid.IsExpired(*opts.FilterExpiry) {
			return true, nil
		}
		bids = append(bids, bid)
		return len(bids) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *registry) get(key []byte, out any) (bool, error) {
	raw, err := r.tx.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("corrupt record at %q: %w", key, err)
	}
	return true, nil
}

func (r *registry) put(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.tx.Set(key, raw)
}
