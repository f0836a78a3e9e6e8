package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

// KafkaPublisher hands events to a background writer through a buffered inbox,
// so a slow broker cannot stall request handling.
type KafkaPublisher struct {
	w       *kafka.Writer
	inbox   chan kafka.Message
	closeCh chan struct{}
	log     zerolog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, buf int, log zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		inbox:   make(chan kafka.Message, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

var _ Publisher = (*KafkaPublisher)(nil)

// Start launches the writer loop. On ctx cancellation the remaining inbox is
// flushed before the writer closes.
func (p *KafkaPublisher) Start(ctx context.Context) {
	go func() {
		defer close(p.closeCh)
		for {
			select {
			case <-ctx.Done():
				close(p.inbox)
				for m := range p.inbox {
					p.write(m)
				}
				_ = p.w.Close()
				return
			case m, ok := <-p.inbox:
				if !ok {
					_ = p.w.Close()
					return
				}
				p.write(m)
			}
		}
	}()
}

func (p *KafkaPublisher) write(m kafka.Message) {
	if err := p.w.WriteMessages(context.Background(), m); err != nil {
		p.log.Error().Err(err).Str("key", string(m.Key)).Msg("publish order event")
	}
}

// Publish enqueues ev, dropping it if the inbox is full. Events are advisory;
// the order itself is already committed.
func (p *KafkaPublisher) Publish(_ context.Context, ev OrderEvent) {
	b, err := json.Marshal(ev)
	if err != nil {
		p.log.Error().Err(err).Msg("encode order event")
		return
	}
	m := kafka.Message{Key: []byte(ev.OrderNumber), Value: b, Time: time.Now()}
	select {
	case p.inbox <- m:
	default:
		p.log.Warn().Str("order_number", ev.OrderNumber).Msg("event inbox full, dropping")
	}
}

func (p *KafkaPublisher) WaitClosed() { <-p.closeCh }
