package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ekehi/blockchain/app/services/node/handlers"
	"github.com/ekehi/blockchain/foundation/blockchain/database"
	"github.com/ekehi/blockchain/foundation/blockchain/peer"
	"github.com/ekehi/blockchain/foundation/blockchain/state"
	"github.com/ekehi/blockchain/foundation/blockchain/storage"
	"github.com/ekehi/blockchain/foundation/blockchain/storage/badgerdb"
	"github.com/ekehi/blockchain/foundation/blockchain/storage/memory"
	"github.com/ekehi/blockchain/foundation/blockchain/worker"
	"github.com/ekehi/blockchain/foundation/events"
	"github.com/ekehi/blockchain/foundation/keystore"
	"github.com/ekehi/blockchain/foundation/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// build is the git version of this program. It can be set at build time
// with -ldflags.
var build = "develop"

// storeOpenAttempts bounds the attempts against a store that will not
// open before the node degrades to in-memory state.
const storeOpenAttempts = 5

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Args conf.Args
		Web  struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:10s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			APIHost         string        `conf:"default:0.0.0.0:3000"`
			DebugHost       string        `conf:"default:0.0.0.0:4000"`
			PublicURL       string        `conf:"default:"`
		}
		Node struct {
			MinerName      string        `conf:"default:miner1"`
			KeysFolder     string        `conf:"default:zblock/accounts/"`
			DBPath         string        `conf:"default:zblock/data/"`
			NetworkName    string        `conf:"default:Ekehi Network"`
			TokenName      string        `conf:"default:Ekehi"`
			TokenSymbol    string        `conf:"default:EKH"`
			Difficulty     int           `conf:"default:2"`
			TargetInterval time.Duration `conf:"default:60s"`
			MiningReward   string        `conf:"default:12.5"`
			MinFee         string        `conf:"default:0.001"`
			MaxTxPerBlock  int           `conf:"default:50"`
			MaxPeers       int           `conf:"default:25"`
			Seeds          []string      `conf:"default:"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "copyright information here",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// The positional contract is: node <port> <publicNodeUrl>. A platform
	// supplied environment URL wins over the positional one.
	if port := cfg.Args.Num(0); port != "" {
		cfg.Web.APIHost = "0.0.0.0:" + port
	}
	if publicURL := cfg.Args.Num(1); publicURL != "" && cfg.Web.PublicURL == "" {
		cfg.Web.PublicURL = publicURL
	}
	if cfg.Web.PublicURL == "" {
		cfg.Web.PublicURL = "http://" + cfg.Web.APIHost
	}

	miningReward, err := decimal.NewFromString(cfg.Node.MiningReward)
	if err != nil {
		return fmt.Errorf("parsing mining reward: %w", err)
	}
	minFee, err := decimal.NewFromString(cfg.Node.MinFee)
	if err != nil {
		return fmt.Errorf("parsing min fee: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Keystore Support

	if err := os.MkdirAll(cfg.Node.KeysFolder, 0755); err != nil {
		return fmt.Errorf("creating keys folder: %w", err)
	}

	ks, err := keystore.New(cfg.Node.KeysFolder)
	if err != nil {
		return fmt.Errorf("unable to load keystore: %w", err)
	}

	minerAddress, err := ks.Address(cfg.Node.MinerName)
	if err != nil {
		log.Infow("startup", "status", "generating miner key", "name", cfg.Node.MinerName)
		if minerAddress, err = ks.Create(cfg.Node.MinerName); err != nil {
			return fmt.Errorf("unable to create miner key: %w", err)
		}
	}

	for name, address := range ks.Copy() {
		log.Infow("startup", "status", "keystore", "name", name, "address", address)
	}

	// =========================================================================
	// Durable Store Support

	// The store is best effort: after the retries are exhausted the node
	// keeps running with in-memory state only.
	var strg storage.Store
	for attempt := 1; ; attempt++ {
		strg, err = badgerdb.New(filepath.Join(cfg.Node.DBPath, "store"))
		if err == nil {
			break
		}

		log.Errorw("startup", "status", "store open failed", "attempt", attempt, "ERROR", err)

		if attempt == storeOpenAttempts {
			log.Errorw("startup", "status", "store unavailable, running with in-memory state only")
			strg = memory.New()
			break
		}

		time.Sleep(time.Duration(attempt) * time.Second)
	}

	// =========================================================================
	// Blockchain Support

	peerSet := peer.NewSet(cfg.Web.PublicURL, cfg.Node.MaxPeers, cfg.Node.Seeds)

	// The blockchain packages accept a function of this signature to allow
	// the application to log. These raw messages are also sent to any
	// websocket client connected through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	st, err := state.New(state.Config{
		Host: cfg.Web.PublicURL,
		Chain: database.Config{
			NetworkName:    cfg.Node.NetworkName,
			TokenName:      cfg.Node.TokenName,
			TokenSymbol:    cfg.Node.TokenSymbol,
			Difficulty:     cfg.Node.Difficulty,
			MinerAddress:   minerAddress,
			TargetInterval: cfg.Node.TargetInterval.Milliseconds(),
			MiningReward:   miningReward,
			MinFee:         minFee,
			MaxTxPerBlock:  cfg.Node.MaxTxPerBlock,
			MaxPeers:       cfg.Node.MaxPeers,
		},
		KnownPeers: peerSet,
		Storage:    strg,
		EvHandler:  ev,
	})
	if err != nil {
		return err
	}
	defer st.Shutdown()

	// The worker implements the background workflows: mining, discovery,
	// health monitoring, syncing and transaction sharing. It registers
	// itself with the state.
	worker.Run(st, ev)

	// =========================================================================
	// Metrics Support

	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "node_chain_height",
			Help: "Current height of the canonical chain.",
		}, func() float64 { return float64(st.RetrieveLatestBlock().Index) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "node_mempool_depth",
			Help: "Number of pending transactions.",
		}, func() float64 { return float64(st.QueryMempoolLength()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "node_known_peers",
			Help: "Number of known peers.",
		}, func() float64 { return float64(len(st.RetrieveKnownPeers())) }),
	)

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug router started", "host", cfg.Web.DebugHost)

	// Not concerned with shutting this down with load shedding.
	debugMux := handlers.DebugMux(build, log)
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing public API support")

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    st,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.APIHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr, "publicURL", cfg.Web.PublicURL)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
