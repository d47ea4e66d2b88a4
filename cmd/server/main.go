package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"hydra/api/protocol"
	"hydra/api/ws"
	"hydra/engine"
	"hydra/infra/config"
	"hydra/infra/logging"
	"hydra/infra/marketdata"
	"hydra/infra/outbox"
	"hydra/infra/sequence"
	"hydra/infra/store"
	"hydra/jobs/broadcaster"
	"hydra/service"
	"hydra/syncer"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("config load failed", "path", *configPath, "err", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging.Level, cfg.Logging.Dir)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---------------- Engine ----------------

	seqGen := sequence.New(0)
	eng := engine.New(cfg.Node.EngineID, seqGen, log)
	codec := protocol.NewCodec(cfg.Market.PriceScale, cfg.Market.QtyScale)

	// ---------------- Storage ----------------

	fillStore, err := store.Open(cfg.Storage.FillsPath)
	if err != nil {
		log.Error("fill store init failed", "err", err)
		os.Exit(1)
	}

	var ob *outbox.Outbox
	if cfg.Kafka.Enabled {
		ob, err = outbox.Open(cfg.Storage.OutboxPath)
		if err != nil {
			log.Error("outbox init failed", "err", err)
			os.Exit(1)
		}
		defer ob.Close()
	}

	// ---------------- API + Service ----------------

	apiServer := ws.NewServer(nil, log)
	svc := service.NewOrderService(eng, codec, fillStore, ob, apiServer, log)
	apiServer.SetService(svc)

	// ---------------- Synchronization ----------------

	pubs := []syncer.Publisher{apiServer}
	if cfg.Kafka.Enabled {
		md := marketdata.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.MarketDataTopic)
		defer md.Close()
		pubs = append(pubs, md)
	}

	sync := syncer.New(eng, codec, log, pubs...)
	apiServer.SetBestPrices(sync.BestPrices())
	go sync.Run(ctx)
	sync.ConnectPeers(ctx, cfg.Peers)

	// ---------------- Background Jobs ----------------

	if cfg.Kafka.Enabled {
		bc, err := broadcaster.New(
			ob,
			cfg.Kafka.Brokers,
			cfg.Kafka.FillsTopic,
			time.Duration(cfg.Kafka.FlushIntervalMS)*time.Millisecond,
			log,
		)
		if err != nil {
			log.Error("broadcaster init failed", "err", err)
			os.Exit(1)
		}
		defer bc.Close()
		bc.Start(ctx)
	}

	// ---------------- HTTP ----------------

	srv := &http.Server{
		Addr:    cfg.Node.ListenAddr,
		Handler: apiServer.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("node started",
		"engine_id", cfg.Node.EngineID,
		"listen", cfg.Node.ListenAddr,
		"peers", cfg.Peers,
	)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
