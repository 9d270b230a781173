package kafka

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type Client struct {
	Brokers []string
}

func NewClient(brokersCSV string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

func (c *Client) NewWriter(topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(c.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

// Publisher writes events to a single topic, keyed by routing key so events
// of one kind keep their order.
type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(c *Client, topic string) *Publisher {
	return &Publisher{writer: c.NewWriter(topic)}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, data any) error {
	value, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(routingKey),
		Value:   value,
		Time:    time.Now().UTC(),
		Headers: []kafka.Header{{Key: "event", Value: []byte(routingKey)}},
	})
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
