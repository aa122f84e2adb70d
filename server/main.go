package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/frankonly/blockseal/api"
	"github.com/frankonly/blockseal/config"
	"github.com/frankonly/blockseal/crypto"
	"github.com/frankonly/blockseal/ledger"
	"github.com/frankonly/blockseal/log"
	"github.com/frankonly/blockseal/seal"
	"github.com/frankonly/blockseal/storage"
)

func main() {
	cmd := &cobra.Command{
		Use:          "blockseal",
		Short:        "Blockseal seals images into a hash-chained ledger and localizes tampering",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.New(cmd.Flags())
			if err != nil {
				return err
			}

			c, err := config.Load(v)
			if err != nil {
				return err
			}

			return run(c)
		},
	}
	config.SetFlags(cmd.Flags())

	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c config.Config) error {
	logger, err := log.New(log.Config{Level: c.LogLevel, Outputs: c.LogOutputs})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := storage.NewLevelDB(c.Path(c.DBDir))
	if err != nil {
		return fmt.Errorf("failed to initialize db: %w", err)
	}
	defer db.Close()

	chain, err := ledger.Open(db, ledger.WithLogger(logger.Named("ledger")))
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	if err := chain.Verify(); err != nil {
		return fmt.Errorf("ledger is inconsistent: %w", err)
	}

	blobs, err := storage.NewBlobStore(db, c.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize blob store: %w", err)
	}

	hasher, err := crypto.HasherByName(c.Hasher)
	if err != nil {
		return err
	}

	cipher, err := crypto.CipherByName(c.Cipher, c.CipherKey, c.CipherNonce)
	if err != nil {
		return err
	}

	sealer, err := seal.New(blobs, chain, seal.Options{
		BlockSize: c.BlockSize,
		Hasher:    hasher,
		Cipher:    cipher,
		MSB:       c.MSB,
		Workers:   c.Workers,
	}, logger.Named("seal"))
	if err != nil {
		return err
	}

	if c.MetricsAddr != "" {
		if err := serveMetrics(c.MetricsAddr, sealer, logger); err != nil {
			return err
		}
	}

	lis, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", c.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	opts := api.ServerOptions()
	if c.TLS {
		creds, err := credentials.NewServerTLSFromFile(c.Path(c.CertFile), c.Path(c.KeyFile))
		if err != nil {
			return fmt.Errorf("failed to generate credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
	}

	grpcServer := grpc.NewServer(opts...)
	api.RegisterSealerServer(grpcServer, api.NewServer(sealer, logger.Named("api"), api.WithMaxPixels(c.MaxPixels)))

	logger.Infow("serving",
		"port", c.Port,
		"tls", c.TLS,
		"blocks", chain.Len(),
		"block_size", c.BlockSize,
		"hasher", hasher.Name(),
		"cipher", cipher.Name(),
	)

	return grpcServer.Serve(lis)
}

func serveMetrics(addr string, sealer *seal.Service, logger *zap.SugaredLogger) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(sealer.Metrics()...)

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	go func() {
		err := http.Serve(lis, mux)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server stopped", "error", err)
		}
	}()
	logger.Infow("serving metrics", "addr", lis.Addr().String())

	return nil
}
