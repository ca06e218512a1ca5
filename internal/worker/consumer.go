// Package worker runs the pool of goroutines that drain the event streams
// into the ingestor.
package worker

import (
	"context"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/events"
)

type eventSource interface {
	ConsumeAppointments(out chan<- events.AppointmentEvent, strategy retry.Strategy) error
	ConsumePrescriptions(out chan<- events.PrescriptionEvent, strategy retry.Strategy) error
	ConsumeTestResults(out chan<- events.TestResultEvent, strategy retry.Strategy) error
}

type eventHandler interface {
	HandleAppointment(ctx context.Context, ev events.AppointmentEvent)
	HandlePrescription(ctx context.Context, ev events.PrescriptionEvent)
	HandleTestResult(ctx context.Context, ev events.TestResultEvent)
}

// Consumer fans the three event streams out to a worker pool.
type Consumer struct {
	source  eventSource
	handler eventHandler
}

// NewConsumer creates a consumer over an event source and the ingestor.
func NewConsumer(source eventSource, handler eventHandler) *Consumer {
	return &Consumer{source: source, handler: handler}
}

// Run starts the stream consumers and workerCount handler goroutines, then
// blocks until the context is cancelled.
func (c *Consumer) Run(ctx context.Context, strategy retry.Strategy, workerCount int) {
	apptChan := make(chan events.AppointmentEvent)
	rxChan := make(chan events.PrescriptionEvent)
	resultChan := make(chan events.TestResultEvent)

	go func() {
		if err := c.source.ConsumeAppointments(apptChan, strategy); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to consume appointment events")
		}
	}()

	go func() {
		if err := c.source.ConsumePrescriptions(rxChan, strategy); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to consume prescription events")
		}
	}()

	go func() {
		if err := c.source.ConsumeTestResults(resultChan, strategy); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to consume test result events")
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(id int) {
			zlog.Logger.Printf("worker-%d started", id)

			for {
				select {
				case <-ctx.Done():
					zlog.Logger.Printf("worker-%d shutting down", id)
					return
				case ev := <-apptChan:
					c.handler.HandleAppointment(ctx, ev)
				case ev := <-rxChan:
					c.handler.HandlePrescription(ctx, ev)
				case ev := <-resultChan:
					c.handler.HandleTestResult(ctx, ev)
				}
			}
		}(i)
	}

	<-ctx.Done()
	zlog.Logger.Print("event consumer stopped")
}
