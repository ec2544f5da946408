package alarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-alarm/internal/infrastructure/logging"
)

// Publisher delivers a message to the broker.
// Satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Options configures a Controller.
type Options struct {
	// Topics sets the namespace. Zero value uses "alarm".
	Topics Topics

	// QoS for state publications.
	QoS byte

	// ClearOnStop publishes armed="0" and entry_alarm="0" before stopping.
	ClearOnStop bool

	Logger    *logging.Logger
	Observers []Observer

	// Clock stamps transitions. Defaults to time.Now.
	Clock func() time.Time
}

// Controller runs the alarm state machine.
//
// State is owned by the goroutine calling Boot, Handle and Run; none of
// them may be called concurrently.
type Controller struct {
	pub         Publisher
	topics      Topics
	qos         byte
	clearOnStop bool
	logger      *logging.Logger
	observers   []Observer
	clock       func() time.Time

	state State
}

// NewController creates a controller in the disarmed state.
func NewController(pub Publisher, opts Options) (*Controller, error) {
	if pub == nil {
		return nil, ErrNilPublisher
	}

	c := &Controller{
		pub:         pub,
		topics:      opts.Topics,
		qos:         opts.QoS,
		clearOnStop: opts.ClearOnStop,
		logger:      opts.Logger,
		observers:   opts.Observers,
		clock:       opts.Clock,
	}
	if c.logger == nil {
		c.logger = logging.Discard()
	}
	if c.clock == nil {
		c.clock = time.Now
	}

	return c, nil
}

// Topics returns the controller's topic set.
func (c *Controller) Topics() Topics {
	return c.topics
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Boot forces the clear state: both flags false and both state topics
// published as "0" retained, overwriting whatever the broker held.
//
// Returns:
//   - error: wraps ErrBootPublish if either publication failed
func (c *Controller) Boot() error {
	before := c.state
	c.state = State{}

	cmds := BootCommands(c.topics)
	published, err := c.publish(cmds)

	c.notify(Transition{
		Kind:      KindBoot,
		Before:    before,
		After:     c.state,
		Commands:  cmds,
		Published: published,
		At:        c.clock(),
	})

	if err != nil {
		return fmt.Errorf("%w: %w", ErrBootPublish, err)
	}
	return nil
}

// Handle processes one event and reports whether the loop should stop.
//
// Publish failures are logged and do not stop processing. Unknown topics
// are ignored without notifying observers.
func (c *Controller) Handle(ev Event) bool {
	kind := c.topics.Classify(ev.Topic)
	if kind == KindUnknown {
		c.logger.Debug("ignoring alarm topic", "topic", ev.Topic)
		return false
	}

	before := c.state
	next, cmds, stop := Step(before, kind, ev.Payload, c.topics)
	if stop && c.clearOnStop {
		next = State{}
		cmds = ClearCommands(c.topics)
	}
	c.state = next

	published, _ := c.publish(cmds) //nolint:errcheck // failures logged in publish

	c.notify(Transition{
		Kind:      kind,
		Event:     ev,
		Before:    before,
		After:     next,
		Commands:  cmds,
		Published: published,
		At:        c.clock(),
	})

	return stop
}

// Run consumes events until a stop event, ctx cancellation or the channel
// closing.
//
// Returns:
//   - nil after a stop event
//   - ctx.Err() when the context is cancelled
//   - ErrSourceClosed when events is closed
func (c *Controller) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return ErrSourceClosed
			}
			if c.Handle(ev) {
				c.logger.Info("stop received, controller exiting", "topic", ev.Topic)
				return nil
			}
		}
	}
}

// publish sends each command and returns how many succeeded.
func (c *Controller) publish(cmds []Command) (int, error) {
	var (
		published int
		errs      []error
	)
	for _, cmd := range cmds {
		if err := c.pub.Publish(cmd.Topic, []byte(cmd.Payload), c.qos, cmd.Retain); err != nil {
			c.logger.Error("publishing alarm state",
				"topic", cmd.Topic,
				"payload", cmd.Payload,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("%s: %w", cmd.Topic, err))
			continue
		}
		published++
	}
	return published, errors.Join(errs...)
}

// notify hands t to every observer. A panicking observer is logged and
// skipped.
func (c *Controller) notify(t Transition) {
	for _, o := range c.observers {
		c.observe(o, t)
	}
}

func (c *Controller) observe(o Observer, t Transition) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("alarm observer panic recovered", "kind", t.Kind, "panic", r)
		}
	}()
	o.Observe(t)
}
