// Package queue declares the event bus topology and provides typed
// consumption of the three domain event streams.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	"github.com/carewellhq/notify-engine/internal/config"
	"github.com/carewellhq/notify-engine/internal/events"
)

// Routing keys of the three streams on the events exchange.
const (
	AppointmentKey  = "appointment"
	PrescriptionKey = "prescription"
	TestResultKey   = "test-result"
)

// EventQueues holds one consumer per domain event stream.
type EventQueues struct {
	appointments  *rabbitmq.Consumer
	prescriptions *rabbitmq.Consumer
	testResults   *rabbitmq.Consumer
}

// NewEventQueues declares the exchange and the three durable stream queues,
// binds them by routing key and returns their consumers.
func NewEventQueues(ch *rabbitmq.Channel, cfg *config.Config) (*EventQueues, error) {
	exchange := rabbitmq.NewExchange(cfg.RabbitMQ.Exchange, "direct")
	if err := exchange.BindToChannel(ch); err != nil {
		return nil, fmt.Errorf("failed to bind to exchange: %w", err)
	}

	qm := rabbitmq.NewQueueManager(ch)

	declare := func(name, key string) (*rabbitmq.Consumer, error) {
		q, err := qm.DeclareQueue(name, rabbitmq.QueueConfig{Durable: true})
		if err != nil {
			return nil, fmt.Errorf("failed to declare queue %s: %w", name, err)
		}

		if err := ch.QueueBind(q.Name, key, exchange.Name(), false, nil); err != nil {
			return nil, fmt.Errorf("failed to bind queue %s: %w", name, err)
		}

		return rabbitmq.NewConsumer(ch, rabbitmq.NewConsumerConfig(q.Name)), nil
	}

	appts, err := declare(cfg.RabbitMQ.AppointmentQueue, AppointmentKey)
	if err != nil {
		return nil, err
	}

	rxs, err := declare(cfg.RabbitMQ.PrescriptionQueue, PrescriptionKey)
	if err != nil {
		return nil, err
	}

	results, err := declare(cfg.RabbitMQ.TestResultQueue, TestResultKey)
	if err != nil {
		return nil, err
	}

	return &EventQueues{appointments: appts, prescriptions: rxs, testResults: results}, nil
}

// ConsumeAppointments decodes the appointment stream into typed events.
// Messages that fail to decode are logged and skipped.
func (q *EventQueues) ConsumeAppointments(out chan<- events.AppointmentEvent, strategy retry.Strategy) error {
	raw := make(chan []byte)

	go func() {
		for m := range raw {
			var ev events.AppointmentEvent
			if err := json.Unmarshal(m, &ev); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal appointment event")
				continue
			}

			out <- ev
		}
	}()

	return q.appointments.ConsumeWithRetry(raw, strategy)
}

// ConsumePrescriptions decodes the prescription stream into typed events.
func (q *EventQueues) ConsumePrescriptions(out chan<- events.PrescriptionEvent, strategy retry.Strategy) error {
	raw := make(chan []byte)

	go func() {
		for m := range raw {
			var ev events.PrescriptionEvent
			if err := json.Unmarshal(m, &ev); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal prescription event")
				continue
			}

			out <- ev
		}
	}()

	return q.prescriptions.ConsumeWithRetry(raw, strategy)
}

// ConsumeTestResults decodes the test result stream into typed events.
func (q *EventQueues) ConsumeTestResults(out chan<- events.TestResultEvent, strategy retry.Strategy) error {
	raw := make(chan []byte)

	go func() {
		for m := range raw {
			var ev events.TestResultEvent
			if err := json.Unmarshal(m, &ev); err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to unmarshal test result event")
				continue
			}

			out <- ev
		}
	}()

	return q.testResults.ConsumeWithRetry(raw, strategy)
}
