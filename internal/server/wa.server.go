package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"whatsapp-service/internal/config"
	"whatsapp-service/internal/dispatch"
	"whatsapp-service/internal/domain"
	hrest "whatsapp-service/internal/handler/http"
	wshandler "whatsapp-service/internal/handler/ws"
	"whatsapp-service/internal/pairing"
	"whatsapp-service/internal/repository"
	"whatsapp-service/internal/router"
	"whatsapp-service/internal/sender"
	"whatsapp-service/internal/usecase"
	wschannel "whatsapp-service/pkg/channel/ws"
	"whatsapp-service/pkg/cache"
	"whatsapp-service/pkg/middleware"
	"whatsapp-service/pkg/notifier/ws"
	"whatsapp-service/pkg/phone"
	"whatsapp-service/pkg/template"
)

const heartbeatInterval = 30 * time.Second

// Server owns the HTTP listener and the background loops that keep the
// agent session alive.
type Server struct {
	HTTP *http.Server

	session   *pairing.Session
	wsManager *ws.Manager
	closers   []func() error
	logger    *zap.Logger
}

func NewServer(ctx context.Context, cfg config.AppConfig, logger *zap.Logger) (*Server, error) {
	s := &Server{logger: logger}

	normalizer, err := phone.NewNormalizer(cfg.DefaultCountryCode)
	if err != nil {
		return nil, err
	}

	// --- Static templates ---
	var static []domain.Template
	if cfg.TemplatesFile != "" {
		static, err = template.LoadFile(cfg.TemplatesFile)
		if err != nil {
			return nil, err
		}
		logger.Info("loaded templates file", zap.String("path", cfg.TemplatesFile), zap.Int("count", len(static)))
	}

	// --- DB connection ---
	var (
		templateRepo repository.TemplateRepository
		logRepo      repository.MessageLogRepository
	)
	if cfg.UseDatabase {
		dbpool, err := config.ConnectDB(ctx, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.closers = append(s.closers, func() error { dbpool.Close(); return nil })
		if err := ensureSchema(ctx, dbpool); err != nil {
			s.Close()
			return nil, err
		}
		templateRepo = repository.NewTemplateRepository(dbpool)
		logRepo = repository.NewMessageLogRepository(dbpool)
	}

	// --- Redis ---
	redisCache := cache.NewCache(cfg.RedisAddrs, cfg.RedisPass, cfg.RedisCluster)
	s.closers = append(s.closers, redisCache.Close)
	if err := redisCache.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, rate limiting and template cache will fail open", zap.Error(err))
	}

	// --- Messaging agent ---
	var snd sender.Sender
	switch cfg.SenderTransport {
	case config.SenderHTTP:
		snd = sender.NewHTTPSender(cfg.AgentHTTPURL, cfg.AgentToken, logger)
	default:
		g, err := sender.DialGRPC(cfg.AgentGRPCAddr, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, g.Close)
		snd = g
	}

	header := http.Header{}
	if cfg.AgentToken != "" {
		header.Set("Authorization", "Bearer "+cfg.AgentToken)
	}
	dialer := wschannel.NewDialer(wschannel.Options{URL: cfg.AgentWSURL, Header: header}, logger)

	s.session = pairing.NewSession(dialer, normalizer, pairing.Options{
		PairingTimeout: cfg.PairingTimeout,
		ReconnectMin:   cfg.ReconnectMin,
		ReconnectMax:   cfg.ReconnectMax,
	}, logger)

	// --- Usecases ---
	var templateCacheIface usecase.JSONCache
	if templateRepo != nil {
		templateCacheIface = redisCache
	}
	templateUC := usecase.NewTemplateUsecase(templateRepo, templateCacheIface, static, logger)
	dispatcher := dispatch.NewDispatcher(normalizer, dispatch.Options{
		Concurrency: cfg.DispatchConcurrency,
		SendTimeout: cfg.SendTimeout,
	}, logger)
	messagingUC := usecase.NewMessagingUsecase(dispatcher, snd, templateUC, logRepo, normalizer, logger)

	// --- WS manager and handler ---
	s.wsManager = ws.NewManager(logger)
	wsHandler := wshandler.NewStatusHandler(s.wsManager, s.session, cfg.CORSOrigins, logger)

	// --- Handlers ---
	restHandler := hrest.NewMessagingHandler(s.session, messagingUC, templateUC, logger)
	verifier := middleware.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	// --- HTTP routes ---
	r := router.SetupRoutes(chi.NewRouter(), restHandler, wsHandler, verifier, redisCache.Client(), router.Options{
		AllowedOrigins:  cfg.CORSOrigins,
		RateLimit:       cfg.RateLimit,
		RateLimitWindow: cfg.RateLimitWindow,
	}, logger)

	s.HTTP = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func ensureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if err := repository.EnsureSchema(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Run serves HTTP and keeps the agent session alive until ctx is done or
// one of them fails.
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	push, feedDone := s.wsManager.Feed(ctx)
	unsubscribe := s.session.Subscribe(func(snap domain.ConnectionSession) {
		push(snap.View())
	})
	defer unsubscribe()

	g.Go(func() error {
		err := s.session.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		s.wsManager.Heartbeat(ctx, heartbeatInterval)
		return nil
	})
	g.Go(func() error {
		s.logger.Info("HTTP server starting", zap.String("addr", s.HTTP.Addr))
		if err := s.HTTP.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.wsManager.CloseAll()
		return s.HTTP.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	<-feedDone
	s.session.Reset()
	return err
}

// Close releases the clients opened by NewServer.
func (s *Server) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Warn("close failed", zap.Error(err))
		}
	}
}
