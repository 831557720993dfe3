// Package app assembles the gateway from configuration: storage driver, gateway
// client, event publisher, services and HTTP router.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/db"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/handlers"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/messagebroker"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

const natsClientName = "pesapay-gateway"

// Storage is the set of repositories behind the services
type Storage struct {
	Ledger      repository.TransactionRepository
	Orphans     repository.OrphanRepository
	Audit       repository.AuditRepository
	Idempotency repository.IdempotencyRepository
	Health      service.HealthChecker
}

// App holds the assembled components
type App struct {
	Config        *config.Config
	Storage       Storage
	Credentials   *gateway.CredentialStore
	Payments      *service.PaymentService
	Status        *service.StatusService
	Disbursements *service.DisbursementService
	Callbacks     *service.CallbackService
	Sweeper       *service.Sweeper
	Router        http.Handler

	logger  *slog.Logger
	closers []func()
}

// Option customises Build
type Option func(*options)

type options struct {
	httpClient *http.Client
	storage    *Storage
	publisher  messagebroker.Publisher
}

// WithHTTPClient sets the client used to reach the gateway.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithStorage replaces the configured storage driver.
func WithStorage(s Storage) Option {
	return func(o *options) { o.storage = &s }
}

// WithPublisher replaces the configured event publisher.
func WithPublisher(p messagebroker.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// Build wires every component from cfg. Close releases the connections it opened.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{Config: cfg, logger: logger}

	if o.storage != nil {
		a.Storage = *o.storage
	} else if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	publisher, err := a.openPublisher(o.publisher)
	if err != nil {
		a.Close()
		return nil, err
	}

	securityCredential, err := resolveSecurityCredential(&cfg.Gateway, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	var clientOpts []gateway.ClientOption
	if o.httpClient != nil {
		clientOpts = append(clientOpts, gateway.WithHTTPClient(o.httpClient))
	}
	client := gateway.NewClient(&cfg.Gateway, logger, clientOpts...)
	a.Credentials = gateway.NewCredentialStore(client, logger,
		gateway.WithRefreshMargin(cfg.Gateway.TokenRefreshMargin),
	)

	s := a.Storage
	settler := service.NewSettler(s.Ledger, s.Audit, publisher, cfg.NATS.SubjectPrefix, logger)
	codec := service.AmountCodec{Exponent: cfg.Gateway.CurrencyExponent}

	a.Payments = service.NewPaymentService(s.Ledger, client, a.Credentials, settler, s.Audit, &cfg.Gateway, logger)
	a.Status = service.NewStatusService(s.Ledger, client, a.Credentials, settler, &cfg.Gateway,
		cfg.Lifecycle.HardTimeout, logger)
	a.Disbursements = service.NewDisbursementService(s.Ledger, client, a.Credentials, settler, s.Audit,
		&cfg.Gateway, securityCredential, logger)
	a.Callbacks = service.NewCallbackService(s.Ledger, s.Orphans, s.Audit, settler, codec,
		cfg.Lifecycle.OrphanWindow, logger)
	a.Sweeper = service.NewSweeper(s.Ledger, a.Status, &cfg.Lifecycle, service.DefaultRetryPolicy(), logger)

	h := handlers.NewHandler(a.Payments, a.Status, a.Disbursements, a.Callbacks, s.Health, logger)
	a.Router = handlers.NewRouter(h, s.Idempotency, logger)

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	cfg := &a.Config.Database
	if cfg.Driver == "memory" {
		a.logger.Warn("using in-memory ledger; transactions are lost on restart")
		a.Storage = MemoryStorage()
		return nil
	}

	database, err := db.Connect(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to ledger database: %w", err)
	}
	a.closers = append(a.closers, func() { _ = database.Close() })

	if err := db.Migrate(ctx, database); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to open callback store pool: %w", err)
	}
	a.closers = append(a.closers, pool.Close)

	a.Storage = Storage{
		Ledger:      repository.NewTransactionRepository(database),
		Orphans:     repository.NewOrphanRepository(pool, a.logger),
		Audit:       repository.NewAuditRepository(pool, a.logger),
		Idempotency: repository.NewIdempotencyRepository(database),
		Health:      database,
	}
	return nil
}

func (a *App) openPublisher(override messagebroker.Publisher) (messagebroker.Publisher, error) {
	if override != nil {
		return override, nil
	}
	if !a.Config.NATS.Enabled {
		return messagebroker.NopPublisher{}, nil
	}

	nc, err := messagebroker.NewNatsClient(a.Config.NATS.URL, natsClientName, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, nc.Close)
	return nc, nil
}

// MemoryStorage returns process-local repositories.
func MemoryStorage() Storage {
	return Storage{
		Ledger:      repository.NewMemoryTransactionRepository(),
		Orphans:     repository.NewMemoryOrphanRepository(),
		Audit:       repository.NewMemoryAuditRepository(),
		Idempotency: repository.NewMemoryIdempotencyRepository(),
		Health:      alwaysHealthy{},
	}
}

type alwaysHealthy struct{}

func (alwaysHealthy) PingContext(context.Context) error { return nil }

// resolveSecurityCredential only fails when B2C credentials are configured but
// unusable. With none configured, disbursements are sent without one and refused.
func resolveSecurityCredential(cfg *config.GatewayConfig, logger *slog.Logger) (string, error) {
	if cfg.SecurityCredential == "" && cfg.CertificatePath == "" {
		logger.Warn("no disbursement security credential configured")
		return "", nil
	}
	credential, err := gateway.ResolveSecurityCredential(cfg.SecurityCredential, cfg.CertificatePath, cfg.InitiatorPassword)
	if err != nil {
		return "", fmt.Errorf("failed to resolve disbursement security credential: %w", err)
	}
	return credential, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
