package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastship/shipper-agent/internal/api"
	"github.com/fastship/shipper-agent/internal/app"
	"github.com/fastship/shipper-agent/internal/auth"
	"github.com/fastship/shipper-agent/internal/cache"
	"github.com/fastship/shipper-agent/internal/config"
	"github.com/fastship/shipper-agent/internal/controller"
	"github.com/fastship/shipper-agent/internal/entities"
	"github.com/fastship/shipper-agent/internal/handler"
	"github.com/fastship/shipper-agent/internal/notify"
	"github.com/fastship/shipper-agent/internal/storage"
	"github.com/fastship/shipper-agent/pkg/utils"

	"github.com/joho/godotenv"
)

func main() {
	conf := config.New()
	logger := newLogger(conf.Env)
	panicIfErr("invalid config", conf.Validate())

	store, err := storage.Open(logger, conf.Storage.Path)
	panicIfErr("failed to open local storage", err)
	defer store.Close()
	logger.Info("local storage ready")

	session := api.NewSession("")
	client := api.New(logger, api.Config{
		BaseURL: conf.API.BaseURL,
		Timeout: conf.API.Timeout,
	}, session)

	authn := auth.New(logger, client, session, store)
	orderCache := cache.New(logger, store)

	ctrl := controller.New(logger, client, orderCache, authn, utils.RetryConfig{
		MaxAttempts:  conf.Retry.MaxAttempts,
		InitialDelay: conf.Retry.InitialDelay,
		Multiplier:   2,
	})

	consumer := notify.NewConsumer(logger, conf.Kafka, ctrl)
	httpHandler := handler.NewHTTPHandler(logger, ctrl, client)

	app := app.New(logger, conf)

	app.SetHTTPHandlers(httpHandler)
	app.SetConsumers(consumer)
	app.SetStarters(sessionStarter{authn: authn, creds: conf.Auth, logger: logger}, ctrl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	panicIfErr("failed to start app", app.Start(ctx))
	<-ctx.Done()
	panicIfErr("failed to stop app", app.Stop())
}

func init() {
	godotenv.Load()
}

func newLogger(env string) *slog.Logger {
	switch env {
	case "production":
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}

func panicIfErr(prefix string, err error) {
	if err != nil {
		panic(prefix + ": " + err.Error())
	}
}

// sessionStarter поднимает сохранённую сессию, а при её отсутствии входит
// по учётным данным из конфигурации.
type sessionStarter struct {
	logger *slog.Logger
	authn  *auth.Authenticator
	creds  config.Auth
}

func (s sessionStarter) Start(ctx context.Context) error {
	err := s.authn.Restore(ctx)
	if err == nil {
		s.logger.Info("session restored")
		return nil
	}
	if !errors.Is(err, entities.ErrNotAuthenticated) {
		return err
	}

	if s.creds.Email == "" {
		return errors.New("no stored session and no credentials configured")
	}

	user, err := s.authn.Login(ctx, s.creds.Email, s.creds.Password)
	if err != nil {
		return err
	}
	s.logger.Info("logged in", slog.String("shipper", user.Email))
	return nil
}
