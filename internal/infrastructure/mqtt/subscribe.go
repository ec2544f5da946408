package mqtt

import (
	"fmt"
)

// Subscribe registers handler for a topic filter and tracks it so a
// reconnect restores it.
//
// alarmd subscribes twice: "$SYS/broker/version" for a debug log line and
// "<prefix>/#" feeding the controller's event source. The filter is tracked
// before the SUBSCRIBE goes out and stays tracked if the broker rejects it
// or the request times out, so the next reconnect retries it. The returned
// error still reports the failure.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or wraps ErrSubscribeFailed
func (c *Client) Subscribe(filter string, qos byte, handler MessageHandler) error {
	if err := ValidateFilter(filter); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s", ErrSubscribeFailed, filter)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.subMu.Lock()
	c.subscriptions[filter] = subscription{topic: filter, qos: qos, handler: handler}
	c.subMu.Unlock()

	return await(c.client.Subscribe(filter, qos, c.wrapHandler(handler)), ErrSubscribeFailed)
}

// Unsubscribe drops a tracked filter and tells the broker to stop
// delivering it. alarmd calls it on shutdown before the event source
// closes. Messages already in flight may still reach the handler.
func (c *Client) Unsubscribe(filter string) error {
	if filter == "" {
		return ErrInvalidTopic
	}

	c.subMu.Lock()
	delete(c.subscriptions, filter)
	c.subMu.Unlock()

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return await(c.client.Unsubscribe(filter), ErrUnsubscribeFailed)
}
