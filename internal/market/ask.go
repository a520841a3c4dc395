package market

import (
	"context"
	"fmt"
)

// execSetAsk lists a token for a fixed price. Re-listing by the current
// seller upserts the record without moving the token again; only the first
// listing takes custody.
func (e *Engine) execSetAsk(ctx context.Context, ex *execution, cmd SetAsk) error {
	const op = "set-ask"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	if err := validateExpiry(op, params.AskExpiry, ex.call, cmd.ExpiresAt); err != nil {
		return err
	}
	if err := validatePrice(op, cmd.Price, params); err != nil {
		return err
	}

	existing, listed, err := ex.reg.ask(cmd.TokenID)
	if err != nil {
		return err
	}
	existingSeller := ""
	if listed {
		existingSeller = existing.Seller
	}
	if err := e.onlyOwnerOrSeller(ctx, op, ex.call.Sender, cmd.TokenID, existingSeller); err != nil {
		return err
	}

	ask := Ask{
		TokenID:        cmd.TokenID,
		Seller:         ex.call.Sender,
		Price:          cmd.Price,
		FundsRecipient: cmd.FundsRecipient,
		ReservedFor:    cmd.ReservedFor,
		ExpiresAt:      cmd.ExpiresAt,
	}
	if err := ex.reg.setAsk(ask); err != nil {
		return err
	}
	if !listed {
		ex.stageToken(cmd.TokenID, e.escrow)
	}

	ex.emit(op, map[string]string{
		"collection": params.Collection,
		"token_id":   ask.TokenID,
		"seller":     ask.Seller,
		"price":      ask.Price.String(),
		"expires_at": ask.ExpiresAt.Format(timeLayout),
	})
	return nil
}

// execRemoveAsk delists a token and returns custody to its seller.
func (e *Engine) execRemoveAsk(ctx context.Context, ex *execution, cmd RemoveAsk) error {
	const op = "remove-ask"
	if err := nonpayable(op, ex.call); err != nil {
		return err
	}
	ask, found, err := ex.reg.ask(cmd.TokenID)
	if err != nil {
		return err
	}
	if !found {
		return errStateConflict(op, fmt.Sprintf("no ask for token %s", cmd.TokenID))
	}
	if err := onlySeller(op, ex.call.Sender, ask.Seller); err != nil {
		return err
	}

	if err := ex.reg.deleteAsk(cmd.TokenID); err != nil {
		return err
	}
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	ex.stageToken(cmd.TokenID, ask.Seller)

	ex.emit(op, map[string]string{
		"collection": params.Collection,
		"token_id":   cmd.TokenID,
	})
	return nil
}
