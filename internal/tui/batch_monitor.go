package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kelsos/cvat-cli/internal/logger"
	"github.com/kelsos/cvat-cli/internal/models"
)

// BatchMonitor shows the progress of a mass operation. It implements
// services.BatchObserver.
type BatchMonitor struct {
	program *tea.Program
}

func NewBatchMonitor() *BatchMonitor {
	return &BatchMonitor{}
}

func (bm *BatchMonitor) Start() error {
	model := NewModel()
	bm.program = tea.NewProgram(model, tea.WithAltScreen())

	return nil
}

func (bm *BatchMonitor) Stop() {
	if bm.program != nil {
		bm.program.Quit()
	}
}

func (bm *BatchMonitor) BatchStarted(operation string, items []string) {
	if bm.program != nil {
		bm.program.Send(BatchStarted{
			Operation: operation,
			Items:     items,
		})
	}
}

func (bm *BatchMonitor) ItemStarted(item string) {
	if bm.program != nil {
		bm.program.Send(ItemStarted{
			Item: item,
		})
	}
}

func (bm *BatchMonitor) ItemFinished(result models.ItemResult) {
	if bm.program != nil {
		bm.program.Send(ItemFinished{
			Result: result,
		})
	}
}

func (bm *BatchMonitor) AddLog(message string) {
	if bm.program != nil {
		bm.program.Send(LogMessage{
			Message: message,
		})
	}
}

// Run executes work while the monitor owns the terminal. Quitting the monitor
// cancels the context handed to work; Run returns once work has returned.
func (bm *BatchMonitor) Run(ctx context.Context, work func(ctx context.Context) error) error {
	if bm.program == nil {
		if err := bm.Start(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		err := work(ctx)
		if err != nil {
			bm.AddLog(fmt.Sprintf("❌ %v", err))
		}
		bm.program.Send(BatchDone{Err: err})
		result <- err
		bm.Stop()
	}()

	// Run the TUI (blocks until quit)
	if _, err := bm.program.Run(); err != nil {
		cancel()
		<-result
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	cancel()
	err := <-result
	if err != nil {
		logger.Debug("Batch finished with error: %v", err)
	}
	return err
}
