package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/auth"
	"quiz-attempt-service/internal/config"
	"quiz-attempt-service/internal/infra/export"
	"quiz-attempt-service/internal/infra/mail"
	"quiz-attempt-service/internal/infra/memory"
	"quiz-attempt-service/internal/infra/postgres"
	redisstore "quiz-attempt-service/internal/infra/redis"
	"quiz-attempt-service/internal/logging"
	transport "quiz-attempt-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz HTTP server and mail worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores is the persistence wiring chosen from config: Postgres when a URL is set,
// process memory otherwise.
type stores struct {
	users    app.UserRepository
	quizzes  app.QuizStore
	attempts app.AttemptRepository
	loader   memory.QuizLoader
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, log zerolog.Logger) (stores, error) {
	if cfg.Postgres.URL == "" {
		quizzes := memory.NewQuizStore()
		log.Warn().Msg("no postgres url configured; using in-memory stores")
		return stores{
			users:    memory.NewUserStore(),
			quizzes:  quizzes,
			attempts: memory.NewAttemptStore(),
			loader:   quizzes,
			close:    func() {},
		}, nil
	}

	db := postgres.Open(cfg.Postgres.URL)
	group, err := postgres.Migrate(ctx, db)
	if err != nil {
		_ = db.Close()
		return stores{}, err
	}
	log.Info().Str("group", group.String()).Msg("migrations applied")

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		_ = db.Close()
		return stores{}, fmt.Errorf("connect pgx pool: %w", err)
	}
	return stores{
		users:    postgres.NewUserStore(db),
		quizzes:  postgres.NewQuizStore(db),
		attempts: postgres.NewAttemptStore(db),
		loader:   postgres.NewQuizLoader(pool),
		close: func() {
			pool.Close()
			_ = db.Close()
		},
	}, nil
}

// caches is the Redis-or-memory wiring for answer keys and OTPs. client is nil in
// memory mode.
type caches struct {
	keys   app.AnswerKeyRepository
	otps   app.OTPStore
	client *redis.Client
	close  func()
}

func openCaches(ctx context.Context, cfg config.Config, loader memory.QuizLoader, log zerolog.Logger) (caches, error) {
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr == "" {
		log.Warn().Msg("no redis addr configured; caches and otps are process-local")
		return caches{
			keys:  memory.NewAnswerKeyCache(loader, quizTTL),
			otps:  memory.NewOTPStore(),
			close: func() {},
		}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return caches{}, fmt.Errorf("ping redis: %w", err)
	}
	return caches{
		keys:   redisstore.NewAnswerKeyCache(client, loader, quizTTL),
		otps:   redisstore.NewOTPStore(client),
		client: client,
		close:  func() { _ = client.Close() },
	}, nil
}

// scoreObserver returns what submissions notify. With Redis the notice goes through
// Pub/Sub so every instance refreshes its boards; the returned channel closes when
// the relay stops.
func scoreObserver(ctx context.Context, cfg config.Config, client *redis.Client, leaderboard *app.LeaderboardService, log zerolog.Logger) (app.ScoreObserver, <-chan struct{}, error) {
	if client == nil {
		done := make(chan struct{})
		close(done)
		return leaderboard, done, nil
	}
	relay := redisstore.NewScoreRelay(client, cfg.Redis.ScoresChannel, leaderboard, log)
	done, err := relay.Listen(ctx)
	if err != nil {
		return nil, nil, err
	}
	return relay, done, nil
}

func newSender(cfg config.Config, log zerolog.Logger) mail.Sender {
	if cfg.Mail.SMTP.Host == "" {
		return mail.NewLogSender(log)
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.SMTP.Host,
		Port:     cfg.Mail.SMTP.Port,
		Username: cfg.Mail.SMTP.Username,
		Password: cfg.Mail.SMTP.Password,
		From:     cfg.Mail.From,
	})
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	policy, err := app.ParseResubmitPolicy(cfg.Attempts.ResubmitPolicy)
	if err != nil {
		return err
	}
	tokens, err := auth.NewJWT(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, time.Hour))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	ch, err := openCaches(ctx, cfg, st.loader, logger)
	if err != nil {
		return err
	}
	defer ch.close()

	pubsub, err := mail.NewPubSub(mail.PubSubConfig{
		Driver:        cfg.Mail.Driver,
		KafkaBrokers:  cfg.Mail.KafkaBrokers,
		ConsumerGroup: cfg.Mail.ConsumerGroup,
	}, logging.NewWatermill(logger))
	if err != nil {
		return err
	}
	defer pubsub.Close()

	workerDone, err := mail.NewWorker(pubsub.Subscriber, cfg.Mail.Topic, newSender(cfg, logger), logger).Start(ctx)
	if err != nil {
		return err
	}

	leaderboard := app.NewLeaderboardService(app.LeaderboardDeps{
		Attempts: st.attempts,
		Users:    st.users,
		Quizzes:  st.quizzes,
		Boards:   memory.NewBoardStore(),
	}, app.LeaderboardOptions{
		Limit:             cfg.Leaderboard.Limit,
		IncludeInProgress: cfg.Leaderboard.IncludeInProgress,
	}, logger)
	observer, relayDone, err := scoreObserver(ctx, cfg, ch.client, leaderboard, logger)
	if err != nil {
		return err
	}

	services := transport.Services{
		Auth: app.NewAuthService(app.AuthDeps{
			Users:    st.users,
			OTPs:     ch.otps,
			Hasher:   auth.NewBcrypt(),
			Tokens:   tokens,
			Notifier: mail.NewNotifier(pubsub.Publisher, cfg.Mail.Topic),
		}, config.TTLDuration(cfg.Auth.OTPTTL, 5*time.Minute), logger),
		Quizzes: app.NewQuizService(st.quizzes, logger),
		Attempts: app.NewAttemptService(app.AttemptDeps{
			Quizzes:  st.quizzes,
			Keys:     ch.keys,
			Attempts: st.attempts,
			Users:    st.users,
			Observer: observer,
			Exporter: export.NewXLSX(),
		}, policy, logger),
		Leaderboard: leaderboard,
		Tokens:      tokens,
	}

	router := transport.NewRouter(services, transport.RouterConfig{
		AllowOrigins: cfg.Server.AllowOrigins,
		Debug:        cfg.Server.Debug,
	}, logger)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("port", finalPort).Str("resubmit_policy", string(policy)).Msg("starting quiz service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	stop()
	<-workerDone
	<-relayDone
	return nil
}
