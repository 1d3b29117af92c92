package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"agora/config"
	"agora/core/events"
	"agora/native/auction"
	"agora/native/common"
	"agora/native/market"
	"agora/native/registry"
	"agora/native/royalty"
	"agora/native/settlement"
	"agora/observability/logging"
	"agora/rpc"
	"agora/state"
	"agora/storage"
)

const eventRetention = 10_000

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger := logging.Setup("agorad", cfg.Env, cfg.LogFile)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	manager := state.NewManager(db)
	sink := events.NewSink(eventRetention)
	locks := common.NewKeyedMutex()

	admin, err := cfg.AdminAddressBytes()
	if err != nil {
		logger.Error("Failed to decode admin address", slog.Any("error", err))
		os.Exit(1)
	}
	feeRecipient, err := cfg.FeeRecipientBytes()
	if err != nil {
		logger.Error("Failed to decode fee recipient", slog.Any("error", err))
		os.Exit(1)
	}

	items := registry.NewLedger()
	items.SetState(manager)

	tokens := registry.NewTokenRegistry()
	tokens.SetState(manager)
	tokens.SetAdmin(admin)
	if path := strings.TrimSpace(cfg.TokenListFile); path != "" {
		if err := tokens.LoadAllowList(path); err != nil {
			logger.Error("Failed to load token allow-list", slog.Any("error", err), slog.String("path", path))
			os.Exit(1)
		}
	}

	feed := registry.NewPriceFeed()
	feed.SetState(manager)
	feed.SetAdmin(admin)

	royalties := royalty.NewRegistry()
	royalties.SetState(manager)
	royalties.SetItems(items)
	royalties.SetAdmin(admin)
	royalties.SetEmitter(sink)

	settle := settlement.NewEngine()
	settle.SetState(manager)
	settle.SetItems(items)
	settle.SetTokens(tokens)
	settle.SetRoyalties(royalties)
	settle.SetPriceFeed(feed)
	settle.SetEmitter(sink)
	settle.SetAdmin(admin)
	settle.SetWrappedSymbol(cfg.WrappedSymbol)
	if err := settle.SetPlatformFee(cfg.PlatformFeeBps, feeRecipient); err != nil {
		logger.Error("Invalid platform fee configuration", slog.Any("error", err))
		os.Exit(1)
	}

	marketEngine := market.NewEngine(settle)
	marketEngine.SetState(manager)
	marketEngine.SetItems(items)
	marketEngine.SetLocks(locks)
	marketEngine.SetEmitter(sink)

	auctions := auction.NewEngine(settle)
	auctions.SetState(manager)
	auctions.SetItems(items)
	auctions.SetLocks(locks)
	auctions.SetEmitter(sink)
	auctions.SetMinBidIncrement(cfg.MinBidIncrementInt())
	auctions.SetSnipeWindow(cfg.SnipeWindowSecs)

	jwtSecret := []byte(strings.TrimSpace(os.Getenv(cfg.AdminJWTSecretEnv)))
	if len(jwtSecret) == 0 {
		logger.Warn("Admin JWT secret not set, privileged RPC methods disabled", slog.String("env", cfg.AdminJWTSecretEnv))
	}

	server := rpc.NewServer(rpc.Deps{
		Market:    marketEngine,
		Auctions:  auctions,
		Royalties: royalties,
		Tokens:    tokens,
		Feed:      feed,
		Items:     items,
		Settle:    settle,
		State:     manager,
		Sink:      sink,
	}, jwtSecret, cfg.RPCRateLimit, logger)

	logger.Info("Marketplace node ready",
		slog.String("rpc", cfg.RPCAddress),
		slog.String("dataDir", cfg.DataDir),
		slog.Uint64("platformFeeBps", uint64(cfg.PlatformFeeBps)),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
