// internal/app/system/events/open.go
package events

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Backends.
const (
	BackendNone     = "none"
	BackendLog      = "log"
	BackendKafka    = "kafka"
	BackendRabbitMQ = "rabbitmq"
)

// Config selects and configures the event backend.
type Config struct {
	Backend      string
	KafkaBrokers string // comma-separated host:port list
	KafkaTopic   string
	RabbitURL    string
	RabbitQueue  string
}

// Open builds the publisher for cfg.Backend.
func Open(cfg Config, logger *zap.Logger) (Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", BackendNone:
		return Nop{}, nil
	case BackendLog:
		return LogPublisher{Logger: logger}, nil
	case BackendKafka:
		brokers := SplitList(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, fmt.Errorf("events: kafka backend needs at least one broker")
		}
		return NewKafkaPublisher(brokers, cfg.KafkaTopic), nil
	case BackendRabbitMQ:
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("events: rabbitmq backend needs a url")
		}
		return NewRabbitPublisher(cfg.RabbitURL, cfg.RabbitQueue)
	default:
		return nil, fmt.Errorf("events: unknown backend %q", cfg.Backend)
	}
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
