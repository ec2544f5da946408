// Package mqtttest runs an in-process MQTT broker for tests.
//
// The broker is a mochi-mqtt server bound to a free loopback port. Every
// PUBLISH it accepts is recorded so tests can assert on what a client sent,
// including the retain flag.
//
//	broker := mqtttest.NewBroker(t)
//	client, err := mqtt.Connect(broker.Config("test-client"))
//	...
//	msg := broker.WaitFor(t, "alarm/armed", 2*time.Second)
package mqtttest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/config"
)

// Message is a PUBLISH observed by the broker.
type Message struct {
	Topic    string
	Payload  string
	Retain   bool
	ClientID string
}

// Broker is an in-process MQTT broker.
type Broker struct {
	Host string
	Port int

	server *mochi.Server

	mu       sync.Mutex
	messages []Message
	notify   chan struct{}
}

// NewBroker starts a broker on a free loopback port and registers cleanup
// with t.
func NewBroker(t testing.TB) *Broker {
	t.Helper()

	port := freePort(t)

	b := &Broker{
		Host:   "127.0.0.1",
		Port:   port,
		notify: make(chan struct{}),
	}

	b.server = mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	if err := b.server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding allow hook: %v", err)
	}
	if err := b.server.AddHook(&recordHook{broker: b}, nil); err != nil {
		t.Fatalf("adding record hook: %v", err)
	}

	listener := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("mqtttest-%d", port),
		Address: b.Addr(),
	})
	if err := b.server.AddListener(listener); err != nil {
		t.Fatalf("adding listener: %v", err)
	}

	go func() {
		_ = b.server.Serve()
	}()

	waitListening(t, b.Addr())

	t.Cleanup(func() {
		_ = b.server.Close()
	})

	return b
}

// Addr returns host:port of the broker.
func (b *Broker) Addr() string {
	return net.JoinHostPort(b.Host, fmt.Sprint(b.Port))
}

// Config returns an MQTT client configuration pointing at the broker.
// The status topic is empty so tests only see the traffic they cause.
func (b *Broker) Config(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     b.Host,
			Port:     b.Port,
			ClientID: clientID,
		},
		QoS:       1,
		KeepAlive: 60,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// Publish injects a message as if a client had published it.
func (b *Broker) Publish(topic, payload string, retain bool) error {
	return b.server.Publish(topic, []byte(payload), retain, 0)
}

// Messages returns a copy of every recorded PUBLISH in arrival order.
func (b *Broker) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Message, len(b.messages))
	copy(out, b.messages)
	return out
}

// MessagesOn returns the recorded messages for one topic.
func (b *Broker) MessagesOn(topic string) []Message {
	var out []Message
	for _, m := range b.Messages() {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// WaitFor blocks until a message on topic has been recorded and returns the
// first one. It fails the test after timeout.
func (b *Broker) WaitFor(t testing.TB, topic string, timeout time.Duration) Message {
	t.Helper()
	return b.WaitForFunc(t, timeout, func(m Message) bool { return m.Topic == topic })
}

// WaitForFunc blocks until a recorded message satisfies match.
func (b *Broker) WaitForFunc(t testing.TB, timeout time.Duration, match func(Message) bool) Message {
	t.Helper()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		b.mu.Lock()
		messages := append([]Message(nil), b.messages...)
		notify := b.notify
		b.mu.Unlock()

		for _, m := range messages {
			if match(m) {
				return m
			}
		}

		select {
		case <-notify:
		case <-deadline.C:
			t.Fatalf("no matching message within %v; recorded %v", timeout, b.Messages())
			return Message{}
		}
	}
}

// record appends a message and wakes waiters.
func (b *Broker) record(m Message) {
	b.mu.Lock()
	b.messages = append(b.messages, m)
	close(b.notify)
	b.notify = make(chan struct{})
	b.mu.Unlock()
}

// recordHook captures every PUBLISH accepted by the broker.
type recordHook struct {
	mochi.HookBase
	broker *Broker
}

func (h *recordHook) ID() string {
	return "mqtttest-record"
}

func (h *recordHook) Provides(b byte) bool {
	return bytes.Contains([]byte{mochi.OnPublish}, []byte{b})
}

func (h *recordHook) OnPublish(cl *mochi.Client, pk packets.Packet) (packets.Packet, error) {
	h.broker.record(Message{
		Topic:    pk.TopicName,
		Payload:  string(pk.Payload),
		Retain:   pk.FixedHeader.Retain,
		ClientID: cl.ID,
	})
	return pk, nil
}

// freePort asks the kernel for an unused loopback port.
func freePort(t testing.TB) int {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	if err := l.Close(); err != nil {
		t.Fatalf("releasing free port: %v", err)
	}
	return port
}

// waitListening polls until the broker accepts TCP connections.
func waitListening(t testing.TB, addr string) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("broker did not start listening on %s", addr)
}
