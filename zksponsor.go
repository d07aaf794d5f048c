// Package zksponsor assembles the zkLogin session and gas sponsorship
// service from its configuration.
package zksponsor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/layer-3/zksponsor/adapters/enoki"
	"github.com/layer-3/zksponsor/adapters/events"
	"github.com/layer-3/zksponsor/adapters/oauth"
	"github.com/layer-3/zksponsor/adapters/store"
	suirpc "github.com/layer-3/zksponsor/adapters/sui"
	"github.com/layer-3/zksponsor/adapters/tokenizer"
	"github.com/layer-3/zksponsor/config"
	"github.com/layer-3/zksponsor/core"
	"github.com/layer-3/zksponsor/internal/clock"
	"github.com/layer-3/zksponsor/internal/sui"
	"github.com/layer-3/zksponsor/ports"
	"github.com/layer-3/zksponsor/service"
	transport "github.com/layer-3/zksponsor/transport/http"
)

const shutdownTimeout = 10 * time.Second

// Server is the assembled service
type Server struct {
	logger  *slog.Logger
	router  *gin.Engine
	sponsor *service.SponsorService

	sweepInterval time.Duration
	sweepers      []func(ctx context.Context, interval time.Duration)
	closers       []func() error
}

// New wires every component described by cfg
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{logger: logger, sweepInterval: cfg.SweepInterval}
	clk := clock.Real()

	sponsorKey, err := sui.ParsePrivateKey(cfg.SponsorPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid SPONSOR_PRIVATE_KEY: %w", err)
	}

	rpcURL := cfg.SuiRPCURL
	if rpcURL == "" {
		rpcURL = suirpc.DefaultRPCURLs[cfg.SuiNetwork]
	}
	chain, err := suirpc.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, func() error { chain.Close(); return nil })

	identity, err := enoki.New(enoki.Config{
		BaseURL: cfg.EnokiAPIURL,
		APIKey:  cfg.EnokiAPIKey,
		Network: cfg.EnokiNetwork,
	})
	if err != nil {
		return nil, err
	}

	google, err := oauth.NewGoogle(oauth.GoogleConfig{
		ClientID:    cfg.GoogleClientID,
		RedirectURL: cfg.GoogleRedirectURI,
	})
	if err != nil {
		return nil, err
	}

	var loginOpts []service.LoginOption
	loginOpts = append(loginOpts, service.WithSessionTTL(cfg.SessionTTL))
	if cfg.GoogleVerifyIDToken {
		verifier, err := oauth.NewVerifier(ctx, cfg.GoogleIssuer, cfg.GoogleClientID)
		if err != nil {
			return nil, err
		}
		loginOpts = append(loginOpts, service.WithIDTokenVerifier(verifier))
	}

	var (
		pendingStore ports.Store[core.PendingLogin]
		sessionStore ports.Store[core.Session]
		sponsorStore ports.Store[core.SponsoredTransaction]
		publisher    message.Publisher
	)

	switch cfg.Store {
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		redisClient := redis.NewClient(opts)
		s.closers = append(s.closers, redisClient.Close)

		pendingStore = store.NewRedisStore[core.PendingLogin](redisClient, cfg.KeyPrefix+"pending:", clk)
		sessionStore = store.NewRedisStore[core.Session](redisClient, cfg.KeyPrefix+"session:", clk)
		sponsorStore = store.NewRedisStore[core.SponsoredTransaction](redisClient, cfg.KeyPrefix+"sponsor:", clk)

		publisher, err = redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redisClient},
			watermill.NewSlogLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis publisher: %w", err)
		}
	default:
		pendingStore = withSweep(s, "pending", store.NewMemoryStore[core.PendingLogin](clk))
		sessionStore = withSweep(s, "session", store.NewMemoryStore[core.Session](clk))
		sponsorStore = withSweep(s, "sponsor", store.NewMemoryStore[core.SponsoredTransaction](clk))

		publisher = gochannel.NewGoChannel(gochannel.Config{}, watermill.NewSlogLogger(logger))
	}
	s.closers = append(s.closers, publisher.Close)

	eventPub := events.NewWatermillPublisher(publisher, clk)

	sessions := service.NewSessions(sessionStore, eventPub, clk, logger.With("component", "sessions"))
	login := service.NewLoginService(
		identity,
		google,
		tokenizer.NewIDTokenParser(),
		service.NewPendingLogins(pendingStore, clk),
		sessions,
		eventPub,
		clk,
		logger.With("component", "login"),
		loginOpts...,
	)
	signer := service.NewSignatureService(sessions, logger.With("component", "signer"))

	s.sponsor, err = service.NewSponsorService(
		service.SponsorConfig{
			Network:      cfg.SuiNetwork,
			EnokiNetwork: cfg.EnokiNetwork,
			GasBudget:    cfg.SponsorGasBudget,
			TTL:          cfg.SponsorTTL(),
		},
		sponsorKey,
		chain,
		service.NewSponsoredTransactions(sponsorStore, clk),
		eventPub,
		clk,
		logger.With("component", "sponsor"),
	)
	if err != nil {
		return nil, err
	}

	s.router = transport.SetupRouter(transport.RouterConfig{
		SecureCookie: cfg.SecureCookies(),
		CORSOrigin:   cfg.CORSOrigin,
		Clock:        clk,
		Logger:       logger.With("component", "http"),
	}, login, sessions, signer, s.sponsor)

	logger.Info("service assembled",
		"network", cfg.SuiNetwork,
		"rpc", rpcURL,
		"store", cfg.Store,
		"sponsor", s.sponsor.SponsorAddress(),
		"verify_id_token", cfg.GoogleVerifyIDToken,
	)

	return s, nil
}

// withSweep registers the store's sweep loop to run with the server
func withSweep[V any](s *Server, name string, st *store.MemoryStore[V]) ports.Store[V] {
	logger := s.logger.With("component", "store", "store", name)
	s.sweepers = append(s.sweepers, func(ctx context.Context, interval time.Duration) {
		st.Run(ctx, interval, logger)
	})
	return st
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.router
}

// SponsorAddress returns the address paying for sponsored gas
func (s *Server) SponsorAddress() string {
	return s.sponsor.SponsorAddress()
}

// Run serves HTTP on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	var wg sync.WaitGroup
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer func() {
		stopSweep()
		wg.Wait()
	}()
	for _, sweep := range s.sweepers {
		if s.sweepInterval <= 0 {
			break
		}
		wg.Add(1)
		go func(sweep func(context.Context, time.Duration)) {
			defer wg.Done()
			sweep(sweepCtx, s.sweepInterval)
		}(sweep)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// Close releases connections held by the server
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
