package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Reel/internal/mq"
	"github.com/shaiso/Reel/internal/telemetry"
	"github.com/shaiso/Reel/internal/workflow"
)

// Default configuration values.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
	triggerPrefetch     = 10

	// defaultOrphanTimeout — сколько processing task без обновлений
	// считается живым, если лок не настроен.
	defaultOrphanTimeout = 30 * time.Minute
)

// Orchestrator управляет выполнением jobs.
//
// Orchestrator — центральный компонент системы, который:
//   - Создаёт job и все его tasks при старте пайплайна
//   - Продвигает job строго по шагам: сборка входа, обработчик, сохранение результата
//   - Поддерживает resume упавшего job и cancel
//   - Получает job.trigger из RabbitMQ (event-driven)
//   - Периодически подбирает pending/running jobs из БД (потерянные сообщения, рестарт)
//
// Шаги одного job выполняются последовательно, разные jobs — параллельно,
// каждый в своей горутине.
type Orchestrator struct {
	// Stores
	jobs  JobStore
	tasks TaskStore

	workflows *workflow.Catalog

	// Optional collaborators
	dispatcher Dispatcher
	events     EventPublisher
	locker     Locker
	conn       *mq.Connection

	// Active jobs — jobs, которые продвигаются в этом процессе
	active *activeJobs

	// Configuration
	pollInterval  time.Duration
	batchSize     int
	orphanTimeout time.Duration

	// Lifecycle
	metrics    *telemetry.Metrics
	logger     *slog.Logger
	baseCtx    context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Stores
	Jobs  JobStore
	Tasks TaskStore

	// Workflows — скомпилированные пайплайны.
	Workflows *workflow.Catalog

	// Dispatcher — куда отправлять start/resume. nil — горутина в этом процессе.
	Dispatcher Dispatcher

	// Events — публикация job.finished. Может быть nil.
	Events EventPublisher

	// Locker — межпроцессный лок на job. nil — только локальная защита.
	Locker Locker

	// Conn — если задан, Start потребляет jobs.trigger.
	Conn *mq.Connection

	// Polling configuration
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // количество jobs за один poll (default: 100)

	// OrphanTimeout — после какого простоя processing task сбрасывается
	// в pending без лока (default: 30m). Должен превышать максимальную
	// длительность шага.
	OrphanTimeout time.Duration

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	orphanTimeout := cfg.OrphanTimeout
	if orphanTimeout <= 0 {
		orphanTimeout = defaultOrphanTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Orchestrator{
		jobs:          cfg.Jobs,
		tasks:         cfg.Tasks,
		workflows:     cfg.Workflows,
		dispatcher:    cfg.Dispatcher,
		events:        cfg.Events,
		locker:        cfg.Locker,
		conn:          cfg.Conn,
		active:        newActiveJobs(),
		pollInterval:  pollInterval,
		batchSize:     batchSize,
		orphanTimeout: orphanTimeout,
		metrics:       cfg.Metrics,
		logger:        logger,
		baseCtx:       ctx,
		cancelFunc:    cancel,
	}
}

// Start запускает фоновую часть Orchestrator.
//
// Запускает:
//   - Consumer для jobs.trigger (если задан Conn)
//   - Polling горутину для восстановления
//
// Отмена ctx равносильна Stop.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.IsStopped() {
		return ErrOrchestratorStopped
	}

	o.logger.Info("starting orchestrator",
		"poll_interval", o.pollInterval,
		"batch_size", o.batchSize,
		"orphan_timeout", o.orphanTimeout,
		"dispatch", o.dispatchMode(),
		"distributed_lock", o.locker != nil,
	)

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		select {
		case <-ctx.Done():
			o.cancelFunc()
		case <-o.baseCtx.Done():
		}
	}()

	if o.conn != nil {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			err := mq.ConsumeTriggers(o.baseCtx, o.conn, triggerPrefetch, o.handleJobTrigger)
			if err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("trigger consumer error", "error", err)
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(o.baseCtx)
	}()

	o.logger.Info("orchestrator started")
	return nil
}

// Stop останавливает Orchestrator и ждёт завершения горутин.
//
// Прерванные шаги остаются processing и перезапускаются
// восстановлением при следующем старте.
func (o *Orchestrator) Stop() {
	o.stoppedMu.Lock()
	o.stopped = true
	o.stoppedMu.Unlock()

	o.logger.Info("stopping orchestrator...")

	o.cancelFunc()

	o.wg.Wait()

	o.logger.Info("orchestrator stopped")
}

// IsStopped проверяет, остановлен ли Orchestrator.
func (o *Orchestrator) IsStopped() bool {
	o.stoppedMu.RLock()
	defer o.stoppedMu.RUnlock()
	return o.stopped
}

// Wait ждёт завершения всех запущенных горутин jobs. Используется в тестах и CLI.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Trigger продвигает job в отдельной горутине этого процесса.
//
// Если job уже продвигается здесь, текущий проход повторится после
// завершения: так resume во время работы цикла не теряется.
func (o *Orchestrator) Trigger(jobID uuid.UUID) {
	if o.IsStopped() {
		return
	}
	if !o.active.acquire(jobID) {
		o.logger.Debug("job already active, scheduling another pass", "job_id", jobID)
		return
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for {
			if err := o.advance(o.baseCtx, jobID); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Error("advance failed", "job_id", jobID, "error", err)
			}
			if !o.active.release(jobID) {
				return
			}
		}
	}()
}

// pollLoop — цикл polling для восстановления.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу при старте (подхватываем jobs, брошенные при рестарте)
	o.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (o *Orchestrator) poll(ctx context.Context) {
	jobs, err := o.jobs.ListActive(ctx, o.batchSize)
	if err != nil {
		if ctx.Err() == nil {
			o.logger.Error("failed to list active jobs", "error", err)
		}
		return
	}

	if len(jobs) == 0 {
		return
	}

	o.logger.Debug("poll found active jobs", "count", len(jobs))

	for i := range jobs {
		if o.active.has(jobs[i].ID) {
			continue
		}
		o.Trigger(jobs[i].ID)
	}
}

// ActiveJobsCount возвращает количество jobs, продвигаемых в этом процессе.
func (o *Orchestrator) ActiveJobsCount() int {
	return o.active.count()
}

// dispatch запускает продвижение job через Dispatcher или локально.
func (o *Orchestrator) dispatch(ctx context.Context, jobID uuid.UUID) {
	if o.dispatcher == nil {
		o.Trigger(jobID)
		return
	}
	if err := o.dispatcher.Dispatch(ctx, jobID); err != nil {
		// job подберёт polling движка
		o.logger.Warn("failed to dispatch job", "job_id", jobID, "error", err)
	}
}

func (o *Orchestrator) dispatchMode() string {
	if o.dispatcher == nil {
		return "inline"
	}
	return "queue"
}
