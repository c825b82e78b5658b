// Package gochannel wires watermill's in-process pub/sub, used when no
// broker is configured (single-binary deployments and tests).
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, logger)

	// The same GoChannel value is both publisher and subscriber.
	return ch, ch
}
