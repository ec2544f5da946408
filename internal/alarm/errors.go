package alarm

import "errors"

var (
	// ErrSourceClosed is returned when the event source is closed while
	// the controller is still running, or when delivering to a closed source.
	ErrSourceClosed = errors.New("alarm: event source closed")

	// ErrNilPublisher is returned by NewController without a publisher.
	ErrNilPublisher = errors.New("alarm: publisher is required")

	// ErrBootPublish is returned when the boot state cannot be published.
	ErrBootPublish = errors.New("alarm: boot publish failed")
)
