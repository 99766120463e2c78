package main

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/joho/godotenv"

	"bookden/internal/api"
	"bookden/internal/apiclient"
	"bookden/internal/auth/authtransport"
	"bookden/internal/auth/credentials"
	"bookden/internal/auth/guard"
	"bookden/internal/auth/session"
	"bookden/internal/platform/config"
	"bookden/internal/platform/logger"
	"bookden/internal/platform/metrics"
	"bookden/pkg/domainerrors"
)

// app holds the wired client stack for one CLI invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	api     *api.Client
	account *api.AccountClient
	session *session.Manager
	gate    *guard.Gate
}

// newApp wires the stack in dependency order. The session manager exists
// before the HTTP client because the auth transport needs its refresh and
// logout hooks; the account client is installed on the manager last.
func newApp() (*app, error) {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Env)

	base, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeConfiguration, "parsing API base URL")
	}
	origin := base.Scheme + "://" + base.Host

	creds, err := credentials.NewFileStore(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	manager := session.NewManager(session.Config{
		Credentials: creds,
		Navigator:   session.NavigatorFunc(func() {}),
		Logger:      log,
		Metrics:     m,
	})

	transport := authtransport.New(http.DefaultTransport, origin, manager, manager,
		authtransport.WithLogger(log), authtransport.WithMetrics(m))

	client, err := apiclient.New(apiclient.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		Transport: transport,
		Logger:    log,
		Metrics:   m,
	})
	if err != nil {
		return nil, err
	}

	account := api.NewAccountClient(client)
	manager.SetAccount(account)

	return &app{
		cfg:     cfg,
		logger:  log,
		api:     api.NewClient(client),
		account: account,
		session: manager,
		gate:    guard.New(manager),
	}, nil
}
