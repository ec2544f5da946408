package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Alarm payloads are single characters; anything near this size is a bug.
const maxPayloadSize = 64 << 10

// Publish sends payload to topic and waits for paho to hand it off.
//
// At QoS 0 the token completes once the packet is written to the
// connection, so a later Subscribe on the same client is processed by the
// broker after this publish. The controller relies on that to boot before
// it subscribes.
//
// Parameters:
//   - topic: concrete topic, no wildcards (e.g. "alarm/armed")
//   - payload: message body, at most 64KiB
//   - qos: 0, 1 or 2
//   - retained: alarm state topics are always retained
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or wraps ErrPublishFailed
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if err := ValidatePublishTopic(topic); err != nil {
		return err
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: %s payload is %d bytes, limit %d", ErrPublishFailed, topic, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return await(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// await waits for token and wraps a timeout or broker error in sentinel.
func await(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
