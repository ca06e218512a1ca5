package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/retry"

	"github.com/carewellhq/notify-engine/internal/events"
)

type fakeSource struct {
	appointments  []events.AppointmentEvent
	prescriptions []events.PrescriptionEvent
	testResults   []events.TestResultEvent
}

func (f *fakeSource) ConsumeAppointments(out chan<- events.AppointmentEvent, _ retry.Strategy) error {
	for _, ev := range f.appointments {
		out <- ev
	}
	select {} // keep the stream open like a live consumer
}

func (f *fakeSource) ConsumePrescriptions(out chan<- events.PrescriptionEvent, _ retry.Strategy) error {
	for _, ev := range f.prescriptions {
		out <- ev
	}
	select {}
}

func (f *fakeSource) ConsumeTestResults(out chan<- events.TestResultEvent, _ retry.Strategy) error {
	for _, ev := range f.testResults {
		out <- ev
	}
	select {}
}

type recordingHandler struct {
	handled chan string
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{handled: make(chan string, 16)}
}

func (h *recordingHandler) HandleAppointment(_ context.Context, ev events.AppointmentEvent) {
	h.handled <- "appointment:" + ev.Type
}

func (h *recordingHandler) HandlePrescription(_ context.Context, ev events.PrescriptionEvent) {
	h.handled <- "prescription:" + ev.Type
}

func (h *recordingHandler) HandleTestResult(_ context.Context, ev events.TestResultEvent) {
	h.handled <- "test-result:" + ev.Type
}

func TestConsumer_Run_DrainsAllStreams(t *testing.T) {
	p := events.Patient{ID: uuid.New(), Name: "Jordan Doe", Email: "jordan@example.com", Phone: "+15550100200"}

	source := &fakeSource{
		appointments:  []events.AppointmentEvent{{Type: events.EventCreated, Patient: p}},
		prescriptions: []events.PrescriptionEvent{{Type: events.EventReady, Patient: p}},
		testResults:   []events.TestResultEvent{{Type: events.EventCreated, Patient: p}},
	}
	handler := newRecordingHandler()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	consumer := NewConsumer(source, handler)
	go consumer.Run(ctx, retry.Strategy{}, 2)

	got := make(map[string]bool)
	for i := 0; i < 3; i++ {
		select {
		case ev := <-handler.handled:
			got[ev] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %v", got)
		}
	}

	assert.True(t, got["appointment:CREATED"])
	assert.True(t, got["prescription:READY"])
	assert.True(t, got["test-result:CREATED"])
}
