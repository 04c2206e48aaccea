package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/domain"
	"github.com/shaiso/Reel/internal/orchestrator"
	"github.com/shaiso/Reel/internal/repo"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// JobService — операции движка, доступные через API.
// Реализуется *orchestrator.Orchestrator.
type JobService interface {
	StartJob(ctx context.Context, req orchestrator.StartRequest) (*orchestrator.JobView, error)
	GetStatus(ctx context.Context, jobID uuid.UUID) (*orchestrator.JobView, error)
	ResumeJob(ctx context.Context, jobID uuid.UUID, ownerID string) (*domain.Job, error)
	CancelJob(ctx context.Context, jobID uuid.UUID, ownerID string) (*domain.Job, error)
	ListJobs(ctx context.Context, filter repo.JobFilter) ([]domain.Job, error)
	MarkConsumed(ctx context.Context, jobID uuid.UUID, ownerID string) (bool, error)
}

// ProviderStore — хранилище конфигураций провайдеров.
// Реализуется repo.ProviderRepo и sqlite.Store.
type ProviderStore interface {
	Provider(ctx context.Context, name string) (*domain.ProviderConfig, error)
	ListProviders(ctx context.Context) ([]domain.ProviderConfig, error)
	UpsertProvider(ctx context.Context, cfg *domain.ProviderConfig) error
	DeleteProvider(ctx context.Context, name string) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	jobs      JobService
	workflows *workflow.Catalog
	providers ProviderStore
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Jobs      JobService
	Workflows *workflow.Catalog

	// Providers может быть nil: тогда маршруты /providers отвечают 404.
	Providers ProviderStore

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		jobs:      cfg.Jobs,
		workflows: cfg.Workflows,
		providers: cfg.Providers,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
}
