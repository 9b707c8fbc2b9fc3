package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"neurocare-api/internal/classifier"
	"neurocare-api/internal/config"
	"neurocare-api/internal/handler"
	"neurocare-api/internal/health"
	"neurocare-api/internal/logger"
	"neurocare-api/internal/middleware"
	"neurocare-api/internal/notify"
	"neurocare-api/internal/service"
	"neurocare-api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger config lives in cfg, so fall back to stderr
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		return err
	}
	log.Info("connected to postgres")

	if cfg.MigrateOnStart {
		v, err := store.Migrate(ctx, pool, log)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Int64("version", v))
	}
	st := store.New(pool)

	// outbound integrations
	var notifier notify.Notifier = notify.Nop{}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, cfg.Location)
		if err != nil {
			return err
		}
		notifier = tg
	}

	var gemini *classifier.Gemini
	if cfg.GeminiAPIKey != "" {
		gemini, err = classifier.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return err
		}
		defer gemini.Close()
	}

	var completer classifier.Completer
	switch cfg.StressProvider {
	case "gemini":
		if gemini == nil {
			return errors.New("STRESS_PROVIDER=gemini needs GEMINI_API_KEY")
		}
		completer = gemini
	default:
		completer = classifier.NewOpenAIChat(cfg.GroqURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.ClassifierTimeout)
	}

	var replies service.ReplyGenerator
	if gemini != nil {
		replies = gemini
	} else {
		log.Warn("GEMINI_API_KEY not set, chat replies use the fallback text")
	}

	// services
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	checker := health.NewChecker(st, 15*time.Second, log)

	accounts := service.NewAccounts(st, cfg.JWTSecret, cfg.TokenTTL, log)
	accounts.SetAdminSignup(cfg.AllowAdminSignup)

	h := handler.New(handler.Deps{
		Accounts:       accounts,
		Booking:        service.NewBooking(st, notifier, cfg.Location, log),
		Classification: service.NewClassification(st, classifier.NewMessageClient(cfg.ClassifierURL, cfg.ClassifierTimeout), log),
		Connect:        service.NewConnect(st, classifier.NewStressClassifier(completer), log),
		Chat:           service.NewChat(st, replies, log),
		Health:         checker,
		Secret:         cfg.JWTSecret,
		CORSOrigins:    cfg.CORSOrigins,
		TrustProxy:     cfg.TrustProxy,
		Limiter:        limiter,
		Log:            log,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// grpc carries health and reflection only
	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(middleware.UnaryLogger(log)))
	healthpb.RegisterHealthServer(grpcSrv, checker.Server())
	reflection.Register(grpcSrv)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc listening", zap.String("addr", lis.Addr().String()))
		return grpcSrv.Serve(lis)
	})
	g.Go(func() error { return checker.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		grpcSrv.GracefulStop()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
