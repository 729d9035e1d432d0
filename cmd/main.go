package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/RaikyD/blockroute-client/internal/application"
	"github.com/RaikyD/blockroute-client/internal/config"
	"github.com/RaikyD/blockroute-client/internal/kafka"
	"github.com/RaikyD/blockroute-client/internal/ledger"
	"github.com/RaikyD/blockroute-client/internal/logger"
	"github.com/RaikyD/blockroute-client/internal/presentation"
	"github.com/RaikyD/blockroute-client/internal/repository"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Init("info")
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.LOG_LEVEL)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Ledger. Без ноды сервис всё равно поднимается, запросы отвечают 503
	var conn ledger.Connection
	session := ledger.ReadOnly
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	eth, err := ledger.Dial(dialCtx, cfg.RPC_URL, cfg.CONTRACT_ADDRESS)
	cancel()
	if err != nil {
		logger.Warn("ledger dial failed, running without connection", "rpc", cfg.RPC_URL, "err", err)
	} else {
		defer eth.Close()
		conn = eth
		logger.Info("ledger connected", "rpc", cfg.RPC_URL, "chain_id", eth.ChainID(), "contract", cfg.CONTRACT_ADDRESS.Hex())

		if cfg.SIGNER_KEY != "" {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.SIGNER_KEY, "0x"))
			if err != nil {
				logger.Warn("signer key invalid", "err", err)
				os.Exit(1)
			}
			opts, err := bind.NewKeyedTransactorWithChainID(key, eth.ChainID())
			if err != nil {
				logger.Warn("signer init failed", "err", err)
				os.Exit(1)
			}
			eth.SetSigner(opts.Signer)
			session = ledger.NewStaticSession(opts.From)
			logger.Info("signer loaded", "account", opts.From.Hex())
		}
	}

	// Wiring
	gw := ledger.NewGateway(conn, session, ledger.WithConfirmTimeout(cfg.CONFIRM_TIMEOUT))
	repo := repository.NewShipmentRepository(gw, repository.WithReadTimeout(cfg.READ_TIMEOUT))

	prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
	defer prod.Close()

	svc, err := application.NewTrackingService(repo, session, prod,
		application.WithRecentLimit(cfg.RECENT_LIMIT),
		application.WithWriteRegistrySize(cfg.WRITE_REGISTRY_SIZE),
	)
	if err != nil {
		logger.Warn("service init failed", "err", err)
		os.Exit(1)
	}
	defer svc.Close()

	// Прогреваем кеш последними отправлениями
	if conn != nil {
		if err := repo.Warm(ctx, cfg.RECENT_LIMIT); err != nil {
			logger.Warn("warm cache failed", "err", err)
		}
	}

	// Kafka consumer: события контракта сбрасывают кеш
	_, _ = kafka.StartConsumer(ctx, repo, kafka.ConsumerConfig{
		Brokers: cfg.KAFKA_BROKERS,
		Topic:   cfg.KAFKA_LEDGER_TOPIC,
		GroupID: cfg.KAFKA_GROUP_ID,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API
	h := presentation.NewShipmentsHandler(svc)
	h.Register(r)

	srv := &http.Server{Addr: ":" + cfg.HTTP_PORT, Handler: r}
	go func() {
		logger.Info("starting http", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server crashed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "err", err)
	}
}
