package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"expensetracker/internal/amqp"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/sheets"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// HandlerTimeout bounds the work done for one event (default: 30s)
	HandlerTimeout time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{HandlerTimeout: 30 * time.Second}
}

// EventSource delivers expense events; *amqp.Client is the production one.
type EventSource interface {
	Consume(ctx context.Context, handler amqp.Handler) error
}

// SyncProcessor consumes expense events, raises budget notifications and
// mirrors the expense into the spreadsheet when an exporter is configured.
type SyncProcessor struct {
	source   EventSource
	budget   BudgetChecker
	exporter sheets.Exporter
	config   SyncProcessorConfig
	logger   *log.Logger

	// Lifecycle management
	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	err     error
}

// NewSyncProcessor creates a new sync processor. budget and exporter may be nil.
func NewSyncProcessor(source EventSource, budget BudgetChecker, exporter sheets.Exporter, config SyncProcessorConfig, logger *log.Logger) *SyncProcessor {
	if config.HandlerTimeout <= 0 {
		config.HandlerTimeout = DefaultSyncProcessorConfig().HandlerTimeout
	}
	return &SyncProcessor{
		source:   source,
		budget:   budget,
		exporter: exporter,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Start begins consuming. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("sync processor is already running")
	}
	if p.source == nil {
		return errors.New("sync processor has no event source")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.running = true
	p.cancel = cancel
	p.doneCh = make(chan struct{})
	p.err = nil

	go func() {
		defer close(p.doneCh)
		err := p.source.Consume(runCtx, p.HandleEvent)
		p.mu.Lock()
		p.running = false
		if err != nil && !errors.Is(err, context.Canceled) {
			p.err = err
		}
		p.mu.Unlock()
	}()

	p.logger.InfoContext(ctx, "Sync processor started", "sheets_export", p.exporter != nil)
	return nil
}

// Stop cancels consumption and waits for the in-flight event to finish.
func (p *SyncProcessor) Stop() error {
	p.mu.Lock()
	cancel, done := p.cancel, p.doneCh
	p.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done

	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancel = nil
	return p.err
}

// Run consumes until ctx is cancelled or the source gives up.
func (p *SyncProcessor) Run(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case <-p.Done():
	}
	return p.Stop()
}

// Done is closed when consumption ends.
func (p *SyncProcessor) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doneCh
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// HandleEvent processes one expense event. A returned error makes the
// broker redeliver the event once.
func (p *SyncProcessor) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	ctx, cancel := context.WithTimeout(ctx, p.config.HandlerTimeout)
	defer cancel()

	e, err := ev.Expense()
	if err != nil {
		// Nothing useful can be done with an undated event; drop it.
		p.logger.WarnContext(ctx, "Dropping event with invalid date",
			log.FieldEventType, ev.Type,
			log.FieldExpenseID, ev.ExpenseID,
			log.FieldDate, ev.Date)
		return nil
	}

	p.logger.InfoContext(ctx, "Processing expense event",
		log.FieldEventType, ev.Type,
		log.FieldExpenseID, ev.ExpenseID,
		log.FieldUserID, ev.UserID)

	if p.budget != nil && ev.Type != amqp.EventExpenseDeleted {
		if _, err := p.budget.Check(ctx, e.UserID, e.Date.Year(), int(e.Date.Month())); err != nil {
			return fmt.Errorf("budget check: %w", err)
		}
	}

	if p.exporter != nil {
		if err := p.export(ctx, ev.Type, e); err != nil {
			return fmt.Errorf("sheets export: %w", err)
		}
	}
	return nil
}

func (p *SyncProcessor) export(ctx context.Context, t amqp.EventType, e core.Expense) error {
	switch t {
	case amqp.EventExpenseCreated:
		_, err := p.exporter.Append(ctx, e)
		return err
	case amqp.EventExpenseUpdated:
		_, err := p.exporter.UpdateExpense(ctx, e)
		return err
	case amqp.EventExpenseDeleted:
		err := p.exporter.DeleteExpense(ctx, e)
		if errors.Is(err, sheets.ErrNotExported) {
			p.logger.DebugContext(ctx, "Deleted expense was never exported", log.FieldExpenseID, e.ID)
			return nil
		}
		return err
	default:
		p.logger.WarnContext(ctx, "Unknown event type", log.FieldEventType, t)
		return nil
	}
}
