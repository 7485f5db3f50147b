package messaging

import (
	"context"
)

// Broker fans committed events out to subscribers. Channels are event names;
// implementations may namespace them with ChannelName.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	// Subscribe delivers raw messages until ctx is done, then closes the channel.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// ChannelName returns "<prefix>.<eventName>", or eventName alone when prefix is empty.
func ChannelName(prefix, eventName string) string {
	if prefix == "" {
		return eventName
	}
	return prefix + "." + eventName
}
