package market

import (
	"context"
	"fmt"
	"strconv"
)

// execSetCollectionBid escrows a standing offer for N units across the
// collection. Payment must equal price x units exactly. A prior collection
// bid by the same bidder is refunded in full and replaced; quantities never
// merge.
func (e *Engine) execSetCollectionBid(ctx context.Context, ex *execution, cmd SetCollectionBid) error {
	const op = "set-collection-bid"
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	payment, err := mustPay(op, ex.call, params.Denom)
	if err != nil {
		return err
	}
	if cmd.Units < 1 {
		return errValidation(op, "unit count must be at least 1", ">= 1", strconv.FormatUint(uint64(cmd.Units), 10))
	}

	bid := CollectionBid{
		Bidder:    ex.call.Sender,
		Units:     cmd.Units,
		Price:     cmd.Price,
		ExpiresAt: cmd.ExpiresAt,
	}
	total := bid.TotalCost()
	if err := validatePrice(op, NewCoin(params.Denom, total), params); err != nil {
		return err
	}
	if !total.Equal(payment.Amount) {
		return errPayment(op, "payment must equal price times units",
			total.String(), payment.Amount.String())
	}
	if err := validateExpiry(op, params.BidExpiry, ex.call, cmd.ExpiresAt); err != nil {
		return err
	}

	// Escrow the attached payment.
	ex.stageCoin(bid.Bidder, e.escrow, payment)

	// Replace-and-refund: the remaining escrow of a prior collection bid
	// goes back in full.
	if existing, found, err := ex.reg.collectionBid(bid.Bidder); err != nil {
		return err
	} else if found {
		if err := ex.reg.deleteCollectionBid(existing.Bidder); err != nil {
			return err
		}
		ex.stageCoin(e.escrow, existing.Bidder, NewCoin(params.Denom, existing.TotalCost()))
		ex.emit("refund-collection-bid", map[string]string{
			"bidder": existing.Bidder,
			"amount": existing.TotalCost().String(),
		})
	}

	if err := ex.reg.setCollectionBid(bid); err != nil {
		return err
	}

	ex.emit(op, map[string]string{
		"bidder":     bid.Bidder,
		"price":      bid.Price.String(),
		"units":      strconv.FormatUint(uint64(bid.Units), 10),
		"expires_at": bid.ExpiresAt.Format(timeLayout),
	})
	return nil
}

// execRemoveCollectionBid withdraws the sender's collection bid, refunding
// the escrow still covering its remaining units.
func (e *Engine) execRemoveCollectionBid(ctx context.Context, ex *execution, cmd RemoveCollectionBid) error {
	const op = "remove-collection-bid"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	bid, found, err := ex.reg.collectionBid(ex.call.Sender)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no collection bid by %s", ex.call.Sender))
	}
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	if err := ex.reg.deleteCollectionBid(bid.Bidder); err != nil {
		return err
	}
	ex.stageCoin(e.escrow, bid.Bidder, NewCoin(params.Denom, bid.TotalCost()))

	ex.emit(op, map[string]string{
		"bidder": bid.Bidder,
	})
	return nil
}

// execAcceptCollectionBid sells one token into a collection bid. One unit's
// escrow pays out; the record is deleted at zero units, otherwise the
// decremented remainder stays live for other owners.
func (e *Engine) execAcceptCollectionBid(ctx context.Context, ex *execution, cmd AcceptCollectionBid) error {
	const op = "accept-collection-bid"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	bid, found, err := ex.reg.collectionBid(cmd.Bidder)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no collection bid by %s", cmd.Bidder))
	}
	if bid.IsExpired(ex.call.Now) {
		return errStateConflict(op, fmt.Sprintf("collection bid expired at %s", bid.ExpiresAt.Format(timeLayout)))
	}

	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	ask, hasAsk, err := ex.reg.ask(cmd.TokenID)
	if err != nil {
		return err
	}
	askSeller := ""
	if hasAsk {
		askSeller = ask.Seller
	}
	if err := e.onlyOwnerOrSeller(ctx, op, ex.call.Sender, cmd.TokenID, askSeller); err != nil {
		return err
	}

	recipient := ex.call.Sender
	if hasAsk {
		if err := ex.reg.deleteAsk(ask.TokenID); err != nil {
			return err
		}
		recipient = ask.Recipient()
	}

	if bid.Units == 1 {
		if err := ex.reg.deleteCollectionBid(bid.Bidder); err != nil {
			return err
		}
		bid.Units = 0
	} else {
		bid.Units--
		if err := ex.reg.setCollectionBid(bid); err != nil {
			return err
		}
	}

	e.finalizeSale(ex, bid.Bidder, cmd.TokenID, bid.Price.Amount, recipient, params)

	ex.emit(op, map[string]string{
		"token_id":   cmd.TokenID,
		"bidder":     bid.Bidder,
		"price":      bid.Price.String(),
		"units":      strconv.FormatUint(uint64(bid.Units), 10),
		"expires_at": bid.ExpiresAt.Format(timeLayout),
	})
	return nil
}
