// Package eventstreamutils builds the configured eventstream.Publisher.
package eventstreamutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/folio/pkg/eventstream"
	"github.com/papercomputeco/folio/pkg/eventstream/kafka"
	"github.com/papercomputeco/folio/pkg/eventstream/nop"
)

// Publisher names accepted by NewPublisher.
const (
	ProviderNone  = "none"
	ProviderKafka = "kafka"
)

type NewPublisherOpts struct {
	ProviderType string
	Brokers      []string
	Topic        string
	Logger       *slog.Logger
}

func NewPublisher(o *NewPublisherOpts) (eventstream.Publisher, error) {
	switch o.ProviderType {
	case "", ProviderNone:
		return nop.NewPublisher(), nil
	case ProviderKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers: o.Brokers,
			Topic:   o.Topic,
		}, o.Logger)
	default:
		return nil, fmt.Errorf("unsupported event publisher: %s", o.ProviderType)
	}
}
