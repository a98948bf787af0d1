package kafka

import (
	"github.com/IBM/sarama"
)

// NewConfig returns the client settings shared by producers and consumers.
func NewConfig(clientID string) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	if clientID != "" {
		cfg.ClientID = clientID
	}
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return cfg
}

// Topic joins the configured prefix with a topic name.
func Topic(prefix, name string) string {
	return prefix + name
}
