package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/BioHazard786/multiplay/internal/discovery"
	"github.com/BioHazard786/multiplay/internal/logging"
	"github.com/BioHazard786/multiplay/internal/relay"
	"github.com/BioHazard786/multiplay/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

var (
	flagListen    string
	flagRedis     string
	flagAdvertise bool
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Run a signaling relay",
	Long: `Run the signaling relay that pairs hosts and players. Room codes are kept
in memory, or in Redis with --redis so several relays never hand out the same
code. With --advertise the relay announces itself on the local network.

Examples:
  multiplay relay --listen :8080 --advertise
  multiplay relay --redis localhost:6379`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelay(cmd.Context())
	},
}

func runRelay(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	rc := cfg.Relay
	if flagListen != "" {
		rc.ListenAddr = flagListen
	}
	if flagRedis != "" {
		rc.RedisAddr = flagRedis
	}
	rc.Advertise = rc.Advertise || flagAdvertise

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "info"
	}
	logging.InitWriter(os.Stderr, level)
	logger := slog.Default()
	if logging.ParseLevel(level) > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}

	var codes relay.CodeStore
	if rc.RedisAddr != "" {
		rdb, err := relay.ConnectRedis(ctx, rc.RedisAddr, rc.RedisPassword, rc.RedisDB)
		if err != nil {
			return err
		}
		defer rdb.Close()
		codes = &relay.RedisCodes{Client: rdb, TTL: relay.DefaultCodeTTL}
		logger.Info("room codes stored in redis", "addr", rc.RedisAddr)
	}

	ln, err := net.Listen("tcp", rc.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	hub := relay.NewHub(relay.Options{Codes: codes, Logger: logger})
	srv := &http.Server{
		Handler:           relay.NewRouter(hub, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("relay listening", "addr", ln.Addr().String(), "version", version.Version)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if rc.Advertise {
		port := ln.Addr().(*net.TCPAddr).Port
		server, err := discovery.Advertise(discovery.AdvertiseConfig{
			Port:    port,
			Version: version.Version,
			Logger:  logger,
		})
		if err != nil {
			logger.Warn("local network discovery unavailable", "error", err)
		} else {
			g.Go(func() error {
				<-ctx.Done()
				server.Shutdown()
				return nil
			})
		}
	}

	return g.Wait()
}

func init() {
	rootCmd.AddCommand(relayCmd)

	relayCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (default :8080)")
	relayCmd.Flags().StringVar(&flagRedis, "redis", "", "Redis address for room codes")
	relayCmd.Flags().BoolVar(&flagAdvertise, "advertise", false, "Advertise the relay over mDNS")
}
