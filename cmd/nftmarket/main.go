// Command nftmarket runs the NFT marketplace matching and settlement
// service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Aidin1998/nftmarket/internal/api"
	"github.com/Aidin1998/nftmarket/internal/config"
	"github.com/Aidin1998/nftmarket/internal/events"
	"github.com/Aidin1998/nftmarket/internal/ledger"
	"github.com/Aidin1998/nftmarket/internal/market"
	"github.com/Aidin1998/nftmarket/internal/storage"
	"github.com/Aidin1998/nftmarket/internal/whitelist"
	"github.com/Aidin1998/nftmarket/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer log.Sync()

	store, err := openStore(cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	// The coin and token ledgers are external systems in production; the
	// in-process implementations back sandboxed deployments.
	bank := ledger.NewMemoryBank()
	tokens := ledger.NewMemoryTokenLedger()

	engine := market.NewEngine(store, tokens, bank, cfg.Market.EscrowAccount, log)
	wl := whitelist.New(store, log)

	if err := bootstrap(context.Background(), cfg, engine, wl, log); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	var publisher events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kp.Close()
		publisher = kp
		log.Info("publishing events to kafka",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.Topic))
	} else {
		publisher = events.NewLogPublisher(log)
	}

	server := api.NewServer(engine, wl, publisher, log)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info("shutting down", zap.String("signal", sig.String()))
		return nil
	}
}

// bootstrap seeds the marketplace parameters, and the whitelist when
// configured, on a fresh store. A store that already carries them (a
// badger restart) is left untouched.
func bootstrap(ctx context.Context, cfg config.Config, engine *market.Engine, wl *whitelist.Service, log *zap.Logger) error {
	params, err := marketParams(cfg.Market.Params)
	if err != nil {
		return fmt.Errorf("market params: %w", err)
	}
	if err := engine.Init(ctx, params); err != nil {
		if !market.IsKind(err, market.KindStateConflict) {
			return err
		}
		log.Info("marketplace already initialized, keeping stored parameters")
	}

	if cfg.Whitelist == nil {
		return nil
	}
	unitPrice, err := decimal.NewFromString(cfg.Whitelist.UnitPrice)
	if err != nil {
		return fmt.Errorf("whitelist unit price: %w", err)
	}
	wlCfg := whitelist.Config{
		Admin:           cfg.Whitelist.Admin,
		StartTime:       cfg.Whitelist.StartTime,
		EndTime:         cfg.Whitelist.EndTime,
		UnitPrice:       market.NewCoin(params.Denom, unitPrice),
		PerAddressLimit: cfg.Whitelist.PerAddressLimit,
		MemberLimit:     cfg.Whitelist.MemberLimit,
	}
	if err := wl.Init(ctx, wlCfg, cfg.Whitelist.Members, time.Now().UTC()); err != nil {
		if !market.IsKind(err, market.KindStateConflict) {
			return err
		}
		log.Info("whitelist already initialized, keeping stored configuration")
	}
	return nil
}

func marketParams(cfg config.ParamsConfig) (market.Params, error) {
	fee, err := decimal.NewFromString(cfg.FeePercent)
	if err != nil {
		return market.Params{}, fmt.Errorf("fee percent %q: %w", cfg.FeePercent, err)
	}
	minPrice, err := decimal.NewFromString(cfg.MinPrice)
	if err != nil {
		return market.Params{}, fmt.Errorf("min price %q: %w", cfg.MinPrice, err)
	}
	return market.Params{
		Collection:    cfg.Collection,
		Denom:         cfg.Denom,
		Collector:     cfg.Collector,
		FeePercent:    fee,
		AskExpiry:     market.ExpiryRange{Min: cfg.AskExpiry.Min, Max: cfg.AskExpiry.Max},
		BidExpiry:     market.ExpiryRange{Min: cfg.BidExpiry.Min, Max: cfg.BidExpiry.Max},
		AuctionExpiry: market.ExpiryRange{Min: cfg.AuctionExpiry.Min, Max: cfg.AuctionExpiry.Max},
		Operators:     cfg.Operators,
		MinPrice:      minPrice,
	}, nil
}

func openStore(cfg config.StorageConfig, log *zap.Logger) (storage.Store, error) {
	switch cfg.Backend {
	case "badger":
		return storage.OpenBadger(cfg.Dir, log)
	default:
		return storage.NewMemory(), nil
	}
}
