// Package mqtt provides MQTT client connectivity for the alarm controller.
//
// This package manages:
//   - Connection to the broker with keepalive and auto-reconnect
//   - Message publishing with QoS and retain control
//   - Topic subscriptions with wildcard support, restored on every reconnect
//   - Last Will and Testament (LWT) on the controller status topic
//   - Connection health monitoring
//
// # Connection Policy
//
// The first connection is attempted once. If the broker is unreachable,
// Connect returns an error wrapping ErrConnectionFailed and the process exits.
// Once connected, paho reconnects with exponential backoff and every tracked
// subscription is re-issued from the OnConnect handler.
//
// # Security Considerations
//
//   - Use TLS (cfg.Broker.TLS=true) when the broker is not on the same host
//   - Publishers on alarm/# are not authenticated by the controller; rely on
//     broker ACLs
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.SubtreeFilter("alarm"), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	client.Publish("alarm/armed", []byte("0"), 0, true)
package mqtt
