package alarm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-alarm/internal/alarm"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/mqtt/mqtttest"
)

const waitTimeout = 3 * time.Second

// harness runs a controller against an in-process broker.
type harness struct {
	broker      *mqtttest.Broker
	transitions chan alarm.Transition
	done        chan error
	cancel      context.CancelFunc
}

func startHarness(t *testing.T) *harness {
	t.Helper()
	return startHarnessOn(t, mqtttest.NewBroker(t))
}

// startHarnessOn boots a controller the way alarmd does: boot publishes
// first, then the alarm subscription.
func startHarnessOn(t *testing.T, broker *mqtttest.Broker) *harness {
	t.Helper()

	client, err := mqtt.Connect(broker.Config("alarm-integration"))
	if err != nil {
		t.Fatalf("mqtt.Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() })

	h := &harness{
		broker:      broker,
		transitions: make(chan alarm.Transition, 64),
		done:        make(chan error, 1),
	}

	source := alarm.NewSource(16)
	t.Cleanup(source.Close)

	topics := alarm.NewTopics("alarm")
	ctrl, err := alarm.NewController(client, alarm.Options{
		Topics: topics,
		Observers: []alarm.Observer{alarm.ObserverFunc(func(tr alarm.Transition) {
			h.transitions <- tr
		})},
	})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	if err := ctrl.Boot(); err != nil {
		t.Fatalf("Boot() error = %v", err)
	}
	if err := client.Subscribe(topics.Filter(), 0, source.Deliver); err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	t.Cleanup(cancel)

	go func() { h.done <- ctrl.Run(ctx, source.Events()) }()

	return h
}

// waitState waits until a transition leaves the controller in want.
func (h *harness) waitState(t *testing.T, want alarm.State) {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case tr := <-h.transitions:
			if tr.After == want {
				return
			}
		case <-deadline:
			t.Fatalf("controller never reached %+v", want)
		}
	}
}

func (h *harness) waitPayload(t *testing.T, topic, payload string) mqtttest.Message {
	t.Helper()
	return h.broker.WaitForFunc(t, waitTimeout, func(m mqtttest.Message) bool {
		return m.Topic == topic && m.Payload == payload
	})
}

func (h *harness) send(t *testing.T, topic, payload string) {
	t.Helper()
	if err := h.broker.Publish(topic, payload, false); err != nil {
		t.Fatalf("broker Publish(%s) error = %v", topic, err)
	}
}

func TestIntegration_BootPublishesClearRetained(t *testing.T) {
	h := startHarness(t)

	for _, topic := range []string{"alarm/armed", "alarm/entry_alarm"} {
		msg := h.waitPayload(t, topic, "0")
		if !msg.Retain {
			t.Errorf("%s boot publish not retained", topic)
		}
	}
}

func TestIntegration_ArmAlarmDisarmStop(t *testing.T) {
	h := startHarness(t)
	h.waitPayload(t, "alarm/entry_alarm", "0")

	h.send(t, "alarm/button", "")
	if msg := h.waitPayload(t, "alarm/armed", "1"); !msg.Retain {
		t.Error("armed=1 not retained")
	}
	h.waitState(t, alarm.State{Armed: true})

	h.send(t, "alarm/pir", "1")
	if msg := h.waitPayload(t, "alarm/entry_alarm", "1"); !msg.Retain {
		t.Error("entry_alarm=1 not retained")
	}
	h.waitState(t, alarm.State{Armed: true, EntryAlarm: true})

	before := len(h.broker.MessagesOn("alarm/entry_alarm"))
	h.send(t, "alarm/button", "")
	h.waitState(t, alarm.State{})
	h.broker.WaitForFunc(t, waitTimeout, func(mqtttest.Message) bool {
		return len(h.broker.MessagesOn("alarm/entry_alarm")) > before
	})
	msgs := h.broker.MessagesOn("alarm/entry_alarm")
	if last := msgs[len(msgs)-1]; last.Payload != "0" || !last.Retain {
		t.Errorf("last entry_alarm = %+v, want retained 0", last)
	}

	h.send(t, "alarm/stop", "")
	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("controller did not stop")
	}
}

func TestIntegration_PIRWhileDisarmedPublishesNothing(t *testing.T) {
	h := startHarness(t)
	h.waitPayload(t, "alarm/entry_alarm", "0")

	h.send(t, "alarm/pir", "1")
	h.send(t, "alarm/stop", "")

	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("controller did not stop")
	}

	if got := len(h.broker.MessagesOn("alarm/entry_alarm")); got != 1 {
		t.Errorf("entry_alarm publications = %d, want only the boot clear", got)
	}
}

func TestIntegration_CancelStopsRun(t *testing.T) {
	h := startHarness(t)
	h.cancel()

	select {
	case err := <-h.done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestIntegration_StaleRetainedStateIgnoredAtBoot(t *testing.T) {
	broker := mqtttest.NewBroker(t)
	// Left behind by a previous run that stopped while in alarm.
	for _, topic := range []string{"alarm/armed", "alarm/entry_alarm"} {
		if err := broker.Publish(topic, "1", true); err != nil {
			t.Fatalf("retaining %s: %v", topic, err)
		}
	}

	h := startHarnessOn(t, broker)
	h.waitPayload(t, "alarm/entry_alarm", "0")

	h.send(t, "alarm/stop", "")
	select {
	case err := <-h.done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("controller did not stop")
	}

	for {
		select {
		case tr := <-h.transitions:
			if tr.After.Armed || tr.After.EntryAlarm {
				t.Errorf("transition on %s %q left state %+v, want disarmed", tr.Event.Topic, tr.Event.Payload, tr.After)
			}
		default:
			return
		}
	}
}
