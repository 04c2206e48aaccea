package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Reel/internal/api"
	"github.com/shaiso/Reel/internal/config"
	"github.com/shaiso/Reel/internal/fields"
	"github.com/shaiso/Reel/internal/handlers"
	"github.com/shaiso/Reel/internal/lock"
	"github.com/shaiso/Reel/internal/mq"
	"github.com/shaiso/Reel/internal/orchestrator"
	"github.com/shaiso/Reel/internal/provider"
	"github.com/shaiso/Reel/internal/repo"
	"github.com/shaiso/Reel/internal/repo/sqlite"
	"github.com/shaiso/Reel/internal/tasks"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// Store — хранилище состояния, выбранное конфигурацией.
type Store struct {
	Jobs      orchestrator.JobStore
	Tasks     orchestrator.TaskStore
	Providers api.ProviderStore
	Driver    string

	close func()
}

// Close закрывает соединения хранилища.
func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStore открывает PostgreSQL или SQLite и применяет схему.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		st, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("sqlite store opened", "path", st.Path())
		return &Store{
			Jobs:      st,
			Tasks:     st,
			Providers: st,
			Driver:    config.DriverSQLite,
			close:     func() { st.Close() },
		}, nil

	case config.DriverPostgres:
		pool, err := repo.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("database connected", "max_conns", cfg.DBMaxConns)
		return &Store{
			Jobs:      repo.NewJobRepo(pool),
			Tasks:     repo.NewTaskRepo(pool),
			Providers: repo.NewProviderRepo(pool),
			Driver:    config.DriverPostgres,
			close:     pool.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}

// Broker — подключение к RabbitMQ. Нулевое значение — брокер отключён.
type Broker struct {
	Conn      *mq.Connection
	Publisher *mq.Publisher
}

// Enabled возвращает true, если брокер подключён.
func (b *Broker) Enabled() bool {
	return b != nil && b.Conn != nil
}

// Close закрывает соединение.
func (b *Broker) Close() {
	if b.Enabled() {
		b.Conn.Close()
	}
}

// ConnectBroker подключается к RabbitMQ и объявляет топологию.
// Пустой URL — брокер отключён, ошибки нет.
func ConnectBroker(ctx context.Context, url string, logger *slog.Logger) (*Broker, error) {
	if url == "" {
		logger.Info("rabbitmq disabled, dispatching jobs in-process")
		return &Broker{}, nil
	}

	conn, err := mq.Dial(url, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("rabbitmq connected")
	logger.Debug("rabbitmq topology", "topology", mq.TopologyInfo())

	return &Broker{Conn: conn, Publisher: mq.NewPublisher(conn, logger)}, nil
}

// EngineOptions — зависимости оркестратора, не выводимые из конфигурации.
type EngineOptions struct {
	Store   *Store
	Broker  *Broker
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Consume включает чтение очереди jobs.trigger (процесс движка).
	Consume bool

	// Lock — межпроцессный лок на job. Может быть nil.
	Lock orchestrator.Locker
}

// Engine — собранный движок.
type Engine struct {
	Orchestrator *orchestrator.Orchestrator
	Workflows    *workflow.Catalog
	Adapter      *provider.Adapter
}

// NewEngine собирает цепочку каталог провайдеров → адаптер → обработчики
// шагов → пайплайны → оркестратор.
func NewEngine(cfg *config.Config, opts EngineOptions) (*Engine, error) {
	catalog, err := providerCatalog(cfg, opts.Store, opts.Logger)
	if err != nil {
		return nil, err
	}

	custom := handlers.DefaultRegistry(handlers.Options{TokenTTL: cfg.TokenTTL})
	if err := custom.Init(); err != nil {
		return nil, fmt.Errorf("init custom handlers: %w", err)
	}

	adapter := provider.NewAdapter(provider.Config{
		Catalog:        catalog,
		Handlers:       custom,
		RequestTimeout: cfg.ProviderTimeout,
		Breaker: provider.BreakerConfig{
			Enabled:     cfg.BreakerEnabled,
			MaxFailures: cfg.BreakerMaxFailures,
			OpenTimeout: cfg.BreakerOpenTimeout,
		},
		PollInterval: cfg.ProviderPollInterval,
		MaxDuration:  cfg.ProviderMaxDuration,
		Metrics:      opts.Metrics,
		Logger:       opts.Logger,
	})

	workflows, err := workflow.DefaultCatalog(fields.DefaultRegistry(), tasks.DefaultRegistry(adapter))
	if err != nil {
		return nil, err
	}

	ocfg := orchestrator.Config{
		Jobs:          opts.Store.Jobs,
		Tasks:         opts.Store.Tasks,
		Workflows:     workflows,
		Locker:        opts.Lock,
		PollInterval:  cfg.PollInterval,
		BatchSize:     cfg.BatchSize,
		OrphanTimeout: cfg.OrphanTimeout,
		Metrics:       opts.Metrics,
		Logger:        opts.Logger,
	}
	// Интерфейсы заполняются только живым publisher'ом: typed nil
	// в интерфейсе не равен nil.
	if opts.Broker.Enabled() {
		ocfg.Dispatcher = opts.Broker.Publisher
		ocfg.Events = opts.Broker.Publisher
		if opts.Consume {
			ocfg.Conn = opts.Broker.Conn
		}
	}

	return &Engine{
		Orchestrator: orchestrator.New(ocfg),
		Workflows:    workflows,
		Adapter:      adapter,
	}, nil
}

// providerCatalog выбирает источник конфигураций: файл, если задан,
// иначе таблица providers.
func providerCatalog(cfg *config.Config, store *Store, logger *slog.Logger) (provider.Catalog, error) {
	if cfg.ProvidersFile != "" {
		catalog, err := provider.LoadCatalogFile(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		logger.Info("provider catalog loaded", "file", cfg.ProvidersFile, "providers", len(catalog.List()))
		return catalog, nil
	}
	return store.Providers, nil
}

// ConnectLock подключается к Redis. Пустой URL — лок отключён.
func ConnectLock(ctx context.Context, cfg *config.Config, logger *slog.Logger) (orchestrator.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return nil, func() {}, nil
	}

	client, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("redis lock enabled", "ttl", cfg.LockTTL)

	l := lock.NewRedis(client, lock.Config{TTL: cfg.LockTTL, Logger: logger})
	return l, closeRedis(client, logger), nil
}

func closeRedis(client *redis.Client, logger *slog.Logger) func() {
	return func() {
		if err := client.Close(); err != nil {
			logger.Warn("redis close failed", "error", err)
		}
	}
}

// ShutdownTimeout — время на graceful shutdown HTTP-серверов.
const ShutdownTimeout = 10 * time.Second
