package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"trivia-night-service/internal/app"
	"trivia-night-service/internal/auth"
	"trivia-night-service/internal/config"
	"trivia-night-service/internal/infra/filesystem"
	"trivia-night-service/internal/infra/memory"
	"trivia-night-service/internal/infra/postgres"
	redisstore "trivia-night-service/internal/infra/redis"
	"trivia-night-service/internal/logger"
	transport "trivia-night-service/internal/transport/http"
)

// newStartCmd builds the CLI subcommand to start the server.
func newStartCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg)
		},
	}
}

// stores holds the backing services chosen by the config.
type stores struct {
	live    app.LiveStore
	quizzes app.QuizStore
	cache   app.QuizRepository
	checks  map[string]func(ctx context.Context) error
	close   func()
}

func openStores(ctx context.Context, cfg config.Config, log logger.Logger) (*stores, error) {
	s := &stores{checks: map[string]func(ctx context.Context) error{}}
	var closers []func()
	s.close = func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		s.live = redisstore.NewLiveStore(redisClient, cfg.Game.ID)
		s.checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
		log.Info("live store: redis", "addr", cfg.Redis.Addr, "game", cfg.Game.ID)
	} else {
		s.live = memory.NewLiveStore()
		log.Info("live store: memory")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg.Postgres.URL, log); err != nil {
			s.close()
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			s.close()
			return nil, err
		}
		closers = append(closers, pool.Close)
		s.quizzes = postgres.NewQuizStore(pool)
		s.checks["postgres"] = pool.Ping
		log.Info("quiz store: postgres")
	} else {
		s.quizzes = memory.NewQuizStore()
		log.Warn("quiz store: memory, edits are lost on restart")
	}

	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if redisClient != nil {
		s.cache = redisstore.NewQuizRepository(redisClient, s.quizzes, ttl)
	} else {
		s.cache = memory.NewQuizRepository(s.quizzes, ttl)
	}
	return s, nil
}

func hostConfig(cfg config.Config) app.HostConfig {
	def := app.DefaultHostConfig()
	return app.HostConfig{
		DefaultTimer:  cfg.Game.DefaultTimer,
		CountdownFrom: cfg.Game.Countdown,
		RevealDelay:   config.TTLDuration(cfg.Game.RevealDelay, def.RevealDelay),
		AutoReveal:    cfg.Game.AutoReveal,
		SpeedScoring:  cfg.Game.SpeedScoring,
		WriteTimeout:  config.TTLDuration(cfg.Game.WriteTimeout, def.WriteTimeout),
	}
}

func runServer(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg.Log.Level)
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	host := app.NewHost(st.live, st.cache, filesystem.NewQuizSource(cfg.Quiz.Dir), hostConfig(cfg), log.With("game", cfg.Game.ID))

	deps := transport.Deps{
		Host:      host,
		Players:   app.NewPlayerService(st.live),
		Editor:    app.NewEditorService(st.quizzes, st.cache, log),
		Log:       log,
		PublicURL: cfg.Server.PublicURL,
		Checks:    st.checks,
	}
	authenticator, err := auth.New(auth.Config{
		Password:     cfg.Auth.Password,
		PasswordHash: cfg.Auth.PasswordHash,
		Secret:       cfg.Auth.JWTSecret,
		TokenTTL:     config.TTLDuration(cfg.Auth.TokenTTL, 12*time.Hour),
	})
	if err != nil {
		log.Warn("host and editor controls disabled", "error", err)
		deps.AuthErr = err
	} else {
		deps.Auth = authenticator
	}

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           transport.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return host.Run(gctx)
	})
	g.Go(func() error {
		log.Info("starting trivia service", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
