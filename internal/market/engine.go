package market

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/ledger"
	"github.com/Aidin1998/nftmarket/internal/storage"
)

// Engine executes marketplace operations against the registries and the
// external ledgers. Calls are serialized on an internal mutex so each one
// holds exclusive access to the registries and the ledgers for its whole
// duration, and gets all-or-nothing semantics by staging registry writes in
// a storage transaction and value movements as ledger intents, applied
// together at the end of the call.
type Engine struct {
	mu     sync.Mutex
	store  storage.Store
	tokens ledger.TokenLedger
	bank   ledger.Bank
	// escrow is the marketplace's own account: custodian of listed tokens
	// and of all outstanding bid escrow.
	escrow string
	logger *zap.Logger
}

// NewEngine creates the engine. escrow is the marketplace's account on both
// ledgers.
func NewEngine(store storage.Store, tokens ledger.TokenLedger, bank ledger.Bank, escrow string, logger *zap.Logger) *Engine {
	return &Engine{
		store:  store,
		tokens: tokens,
		bank:   bank,
		escrow: escrow,
		logger: logger,
	}
}

// Init writes the initial parameters. Fails if the marketplace is already
// initialized.
func (e *Engine) Init(ctx context.Context, params Params) error {
	if err := params.Validate(); err != nil {
		return errValidation("init", err.Error(), "", "")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := e.store.Begin()
	defer tx.Discard()
	reg := &registry{tx: tx}
	initialized, err := reg.hasParams()
	if err != nil {
		return err
	}
	if initialized {
		return errStateConflict("init", "marketplace already initialized")
	}
	if err := reg.setParams(params); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	e.logger.Info("marketplace initialized",
		zap.String("collection", params.Collection),
		zap.String("denom", params.Denom),
		zap.String("fee_percent", params.FeePercent.String()))
	return nil
}

// execution accumulates one call's staged effects.
type execution struct {
	engine  *Engine
	call    Call
	reg     *registry
	intents []ledger.Intent
	events  []Event
}

func (ex *execution) stageCoin(from, to string, amount Coin) {
	ex.intents = append(ex.intents, &ledger.CoinIntent{
		Bank:   ex.engine.bank,
		From:   from,
		To:     to,
		Denom:  amount.Denom,
		Amount: amount.Amount,
	})
}

func (ex *execution) stageToken(tokenID, to string) {
	ex.intents = append(ex.intents, &ledger.TokenIntent{
		Ledger:  ex.engine.tokens,
		TokenID: tokenID,
		To:      to,
	})
}

func (ex *execution) emit(eventType string, attrs map[string]string) {
	ex.events = append(ex.events, newEvent(eventType, ex.call.Now, attrs))
}

// Execute runs one operation. On success it returns the emitted events; on
// any failure the call has no effect. Concurrent callers are serialized:
// the registry snapshot and the ledger transfers of one call never
// interleave with another's.
func (e *Engine) Execute(ctx context.Context, call Call, cmd Command) ([]Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tx := e.store.Begin()
	ex := &execution{engine: e, call: call, reg: &registry{tx: tx}}

	err := e.dispatch(ctx, ex, cmd)
	if err != nil {
		tx.Discard()
		operationsTotal.WithLabelValues(cmd.Name(), "error").Inc()
		e.logger.Warn("operation rejected",
			zap.String("op", cmd.Name()),
			zap.String("sender", call.Sender),
			zap.Error(err))
		return nil, err
	}

	// Transfers and the registry commit form one atomic unit: intents are
	// compensated if the commit fails, and the transaction is discarded if
	// any intent fails.
	if err := ledger.ApplyAll(ctx, ex.intents); err != nil {
		tx.Discard()
		operationsTotal.WithLabelValues(cmd.Name(), "error").Inc()
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			return nil, errPayment(cmd.Name(), "insufficient funds for transfer", "", "")
		}
		return nil, fmt.Errorf("%s: transfer failed: %w", cmd.Name(), err)
	}
	if err := tx.Commit(); err != nil {
		if revertErr := ledger.RevertAll(ctx, ex.intents); revertErr != nil {
			e.logger.Error("commit failed and transfer rollback incomplete",
				zap.String("op", cmd.Name()), zap.Error(revertErr))
		}
		operationsTotal.WithLabelValues(cmd.Name(), "error").Inc()
		return nil, fmt.Errorf("%s: commit failed: %w", cmd.Name(), err)
	}

	operationsTotal.WithLabelValues(cmd.Name(), "ok").Inc()
	e.logger.Info("operation committed",
		zap.String("op", cmd.Name()),
		zap.String("sender", call.Sender),
		zap.Int("events", len(ex.events)))
	return ex.events, nil
}

func (e *Engine) dispatch(ctx context.Context, ex *execution, cmd Command) error {
	switch c := cmd.(type) {
	case UpdateParams:
		return e.execUpdateParams(ctx, ex, c)
	case SetAsk:
		return e.execSetAsk(ctx, ex, c)
	case RemoveAsk:
		return e.execRemoveAsk(ctx, ex, c)
	case SetBid:
		return e.execSetBid(ctx, ex, c)
	case RemoveBid:
		return e.execRemoveBid(ctx, ex, c)
	case AcceptBid:
		return e.execAcceptBid(ctx, ex, c)
	case SetCollectionBid:
		return e.execSetCollectionBid(ctx, ex, c)
	case RemoveCollectionBid:
		return e.execRemoveCollectionBid(ctx, ex, c)
	case AcceptCollectionBid:
		return e.execAcceptCollectionBid(ctx, ex, c)
	case SetAuction:
		return e.execSetAuction(ctx, ex, c)
	case CloseAuction:
		return e.execCloseAuction(ctx, ex, c)
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// execUpdateParams applies an operator's partial parameter update.
func (e *Engine) execUpdateParams(ctx context.Context, ex *execution, cmd UpdateParams) error {
	const op = "update-params"
	params, err := ex.reg.params()
	if err != nil {
		return err
	}
	if err := onlyOperator(op, ex.call, params); err != nil {
		return err
	}

	if cmd.FeePercent != nil {
		params.FeePercent = *cmd.FeePercent
	}
	if cmd.AskExpiry != nil {
		params.AskExpiry = *cmd.AskExpiry
	}
	if cmd.BidExpiry != nil {
		params.BidExpiry = *cmd.BidExpiry
	}
	if cmd.AuctionExpiry != nil {
		params.AuctionExpiry = *cmd.AuctionExpiry
	}
	if cmd.Operators != nil {
		params.Operators = cmd.Operators
	}
	if cmd.MinPrice != nil {
		params.MinPrice = *cmd.MinPrice
	}
	if err := params.Validate(); err != nil {
		return errValidation(op, err.Error(), "", "")
	}
	if err := ex.reg.setParams(params); err != nil {
		return err
	}
	ex.emit(op, map[string]string{
		"collection":  params.Collection,
		"fee_percent": params.FeePercent.String(),
		"min_price":   params.MinPrice.String(),
	})
	return nil
}

// feeSplit computes the marketplace cut. The division by 100 is an exact
// decimal shift; the fee is truncated at the ledger scale and the
// remainder absorbs the rounding, so fee + remainder == gross always.
func feeSplit(gross, feePercent decimal.Decimal) (fee, remainder decimal.Decimal) {
	fee = gross.Mul(feePercent.Shift(-2)).RoundDown(priceKeyScale)
	return fee, gross.Sub(fee)
}

// finalizeSale stages the fee-split payout from escrow and the token
// transfer to the buyer. Shared by matching, bid acceptance and auction
// close.
func (e *Engine) finalizeSale(ex *execution, buyer, tokenID string, gross decimal.Decimal, recipient string, params Params) {
	fee, remainder := feeSplit(gross, params.FeePercent)
	if fee.IsPositive() {
		ex.stageCoin(e.escrow, params.Collector, NewCoin(params.Denom, fee))
	}
	ex.stageCoin(e.escrow, recipient, NewCoin(params.Denom, remainder))
	ex.stageToken(tokenID, buyer)

	salesTotal.Inc()
	saleVolume.Add(gross.InexactFloat64())
	feeVolume.Add(fee.InexactFloat64())

	ex.emit("finalize-sale", map[string]string{
		"collection": params.Collection,
		"token_id":   tokenID,
		"buyer":      buyer,
		"recipient":  recipient,
		"price":      gross.String(),
		"fee":        fee.String(),
	})
}
