package mqtt

import (
	"fmt"
	"strings"
)

// SysBrokerVersion is the broker's informational version topic.
const SysBrokerVersion = "$SYS/broker/version"

// sysPrefix marks broker-internal topics.
const sysPrefix = "$SYS/"

// IsSystemTopic reports whether topic is a broker $SYS topic.
func IsSystemTopic(topic string) bool {
	return strings.HasPrefix(topic, sysPrefix)
}

// SubtreeFilter returns the multi-level filter covering prefix.
//
// Example: SubtreeFilter("alarm") returns "alarm/#".
func SubtreeFilter(prefix string) string {
	return strings.TrimSuffix(prefix, "/") + "/#"
}

// ValidatePublishTopic rejects topics that cannot be published to.
func ValidatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "#+") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateFilter checks wildcard placement in a subscription filter.
//
// '#' must be the last level on its own; '+' must occupy a whole level.
func ValidateFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		switch {
		case strings.Contains(level, "#"):
			if level != "#" || i != len(levels)-1 {
				return fmt.Errorf("%w: misplaced '#' in %q", ErrInvalidTopic, filter)
			}
		case strings.Contains(level, "+"):
			if level != "+" {
				return fmt.Errorf("%w: misplaced '+' in %q", ErrInvalidTopic, filter)
			}
		}
	}
	return nil
}
