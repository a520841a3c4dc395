package market

import (
	"context"
	"fmt"
)

// execSetBid escrows a fixed-price offer. A prior bid by the same bidder on
// the same token is refunded and replaced first. When a qualifying ask is
// live the bid fills immediately as a market order; otherwise it is stored
// as a standing limit order.
func (e *Engine) execSetBid(ctx context.Context, ex *execution, cmd SetBid) error {
	const op = "set-bid"
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	payment, err := mustPay(op, ex.call, params.Denom)
	if err != nil {
		return err
	}
	if !payment.Amount.Equal(cmd.Price.Amount) {
		return errPayment(op, "payment must equal the offered price",
			cmd.Price.Amount.String(), payment.Amount.String())
	}
	if err := validatePrice(op, cmd.Price, params); err != nil {
		return err
	}
	if err := validateExpiry(op, params.BidExpiry, ex.call, cmd.ExpiresAt); err != nil {
		return err
	}

	bid := Bid{
		TokenID:   cmd.TokenID,
		Bidder:    ex.call.Sender,
		Price:     cmd.Price,
		ExpiresAt: cmd.ExpiresAt,
	}

	// Escrow the attached payment.
	ex.stageCoin(bid.Bidder, e.escrow, payment)

	// Replace-and-refund any live bid by the same bidder.
	if existing, found, err := ex.reg.bid(bid.TokenID, bid.Bidder); err != nil {
		return err
	} else if found {
		if err := ex.reg.deleteBid(existing); err != nil {
			return err
		}
		ex.stageCoin(e.escrow, existing.Bidder, existing.Price)
		ex.emit("refund-bid", map[string]string{
			"token_id": existing.TokenID,
			"bidder":   existing.Bidder,
			"price":    existing.Price.String(),
		})
	}

	ask, matched, err := e.matchAsk(ex, bid)
	if err != nil {
		return err
	}
	if matched {
		// Market-order path: consume the ask and settle with the
		// just-escrowed payment. No price comparison against the ask.
		if err := ex.reg.deleteAsk(ask.TokenID); err != nil {
			return err
		}
		e.finalizeSale(ex, bid.Bidder, ask.TokenID, payment.Amount, ask.Recipient(), params)
	} else {
		if err := ex.reg.setBid(bid); err != nil {
			return err
		}
	}

	ex.emit(op, map[string]string{
		"token_id":   bid.TokenID,
		"bidder":     bid.Bidder,
		"price":      bid.Price.String(),
		"expires_at": bid.ExpiresAt.Format(timeLayout),
	})
	return nil
}

// matchAsk decides whether a live ask qualifies to fill the incoming bid:
// it must not be expired and its buyer restriction, if any, must name the
// bidder. Price is never compared.
func (e *Engine) matchAsk(ex *execution, bid Bid) (Ask, bool, error) {
	ask, found, err := ex.reg.ask(bid.TokenID)
	if err != nil || !found {
		return Ask{}, false, err
	}
	if ask.IsExpired(ex.call.Now) {
		return Ask{}, false, nil
	}
	if ask.ReservedFor != "" && ask.ReservedFor != bid.Bidder {
		return Ask{}, false, nil
	}
	return ask, true, nil
}

// execRemoveBid deletes the sender's bid and refunds its escrow. The lookup
// key embeds the sender, so no further authorization is needed.
func (e *Engine) execRemoveBid(ctx context.Context, ex *execution, cmd RemoveBid) error {
	const op = "remove-bid"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	bid, found, err := ex.reg.bid(cmd.TokenID, ex.call.Sender)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no bid on token %s by %s", cmd.TokenID, ex.call.Sender))
	}
	if err := ex.reg.deleteBid(bid); err != nil {
		return err
	}
	ex.stageCoin(e.escrow, bid.Bidder, bid.Price)

	ex.emit(op, map[string]string{
		"token_id": bid.TokenID,
		"bidder":   bid.Bidder,
	})
	return nil
}

// execAcceptBid sells the token to an existing bidder. With a live ask the
// ask's recipient is paid; otherwise the accepting caller is the implicit
// seller. The bid's escrow is consumed, not refunded.
func (e *Engine) execAcceptBid(ctx context.Context, ex *execution, cmd AcceptBid) error {
	const op = "accept-bid"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	bid, found, err := ex.reg.bid(cmd.TokenID, cmd.Bidder)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no bid on token %s by %s", cmd.TokenID, cmd.Bidder))
	}
	if bid.IsExpired(ex.call.Now) {
		return errStateConflict(op, fmt.Sprintf("bid expired at %s", bid.ExpiresAt.Format(timeLayout)))
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

	if err := ex.reg.deleteBid(bid); err != nil {
		return err
	}
	e.finalizeSale(ex, bid.Bidder, cmd.TokenID, bid.Price.Amount, recipient, params)

	ex.emit(op, map[string]string{
		"token_id":   cmd.TokenID,
		"bidder":     cmd.Bidder,
		"price":      bid.Price.String(),
		"expires_at": bid.ExpiresAt.Format(timeLayout),
	})
	return nil
}
