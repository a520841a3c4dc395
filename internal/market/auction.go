package market

import (
	"context"
	"fmt"
	"strconv"
)

// execSetAuction opens an auction for a token the sender owns, taking the
// token into custody. The starting price and optional reserve both pass
// price validation, and the reserve may not undercut the start.
func (e *Engine) execSetAuction(ctx context.Context, ex *execution, cmd SetAuction) error {
	const op = "set-auction"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	if err := validateExpiry(op, params.AuctionExpiry, ex.call, cmd.ExpiresAt); err != nil {
		return err
	}
	if err := e.onlyOwner(ctx, op, ex.call.Sender, cmd.TokenID); err != nil {
		return err
	}
	if err := validatePrice(op, cmd.StartingPrice, params); err != nil {
		return err
	}
	if cmd.ReservePrice != nil {
		if err := validatePrice(op, *cmd.ReservePrice, params); err != nil {
			return err
		}
		if cmd.ReservePrice.Amount.LessThan(cmd.StartingPrice.Amount) {
			return errValidation(op, "reserve price below starting price",
				fmt.Sprintf(">= %s", cmd.StartingPrice.Amount), cmd.ReservePrice.Amount.String())
		}
	}

	if _, exists, err := ex.reg.auction(cmd.TokenID); err != nil {
		return err
	} else if exists {
		return errStateConflict(op, fmt.Sprintf("auction already exists for token %s", cmd.TokenID))
	}

	auction := Auction{
		TokenID:        cmd.TokenID,
		Seller:         ex.call.Sender,
		StartingPrice:  cmd.StartingPrice,
		ReservePrice:   cmd.ReservePrice,
		FundsRecipient: cmd.FundsRecipient,
		ExpiresAt:      cmd.ExpiresAt,
	}
	if err := ex.reg.setAuction(auction); err != nil {
		return err
	}
	ex.stageToken(cmd.TokenID, e.escrow)

	ex.emit(op, map[string]string{
		"collection": params.Collection,
		"token_id":   auction.TokenID,
		"seller":     auction.Seller,
		"price":      auction.StartingPrice.String(),
		"expires_at": auction.ExpiresAt.Format(timeLayout),
	})
	return nil
}

// execCloseAuction settles or unwinds an auction. The highest non-expired
// bid is the candidate; while the auction is live, a candidate that meets
// the reserve cannot be declined. An expired auction can still be closed,
// but only without a sale, and the reserve gate no longer applies, so the
// token is never stranded in custody.
func (e *Engine) execCloseAuction(ctx context.Context, ex *execution, cmd CloseAuction) error {
	const op = "close-auction"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	auction, found, err := ex.reg.auction(cmd.TokenID)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no auction for token %s", cmd.TokenID))
	}
	if err := onlySeller(op, ex.call.Sender, auction.Seller); err != nil {
		return err
	}
	if auction.IsExpired(ex.call.Now) && cmd.AcceptHighestBid {
		return errStateConflict(op, fmt.Sprintf("auction expired at %s; it can only be closed without a sale",
			auction.ExpiresAt.Format(timeLayout)))
	}

	params, err := ex.reg.params()
	if err != nil {
		return err
	}

	// Highest live bid on the token: descending price, expiry-filtered.
	now := ex.call.Now
	top, err := ex.reg.bidsByTokenPrice(cmd.TokenID, QueryOptions{
		Descending:   true,
		FilterExpiry: &now,
		Limit:        1,
	})
	if err != nil {
		return err
	}

	if len(top) > 0 && auction.ReservePrice != nil && !cmd.AcceptHighestBid && !auction.IsExpired(now) {
		if top[0].Price.Amount.GreaterThanOrEqual(auction.ReservePrice.Amount) {
			return errBusinessRule(op, "must accept the highest bid when the reserve price is met")
		}
	}

	if err := ex.reg.deleteAuction(cmd.TokenID); err != nil {
		return err
	}

	isSale := cmd.AcceptHighestBid && len(top) > 0
	if isSale {
		winner := top[0]
		if err := ex.reg.deleteBid(winner); err != nil {
			return err
		}
		e.finalizeSale(ex, winner.Bidder, cmd.TokenID, winner.Price.Amount, auction.Recipient(), params)
	} else {
		// No sale: custody returns, no funds move, and any remaining
		// bids stay for their bidders to withdraw.
		ex.stageToken(cmd.TokenID, auction.Seller)
	}

	ex.emit(op, map[string]string{
		"collection": params.Collection,
		"token_id":   cmd.TokenID,
		"is_sale":    strconv.FormatBool(isSale),
	})
	return nil
}
