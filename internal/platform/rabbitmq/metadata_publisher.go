package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"bacopilot/internal/model"
)

// MetadataPublisher enqueues metadata extraction jobs for uploaded files.
type MetadataPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewMetadataPublisher(conn *amqp.Connection, queueName string) *MetadataPublisher {
	return &MetadataPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *MetadataPublisher) PublishMetadataJob(ctx context.Context, job model.MetadataJob) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal metadata job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			MessageId:    job.FileID.String(),
		},
	); err != nil {
		return fmt.Errorf("publish metadata job failed: %w", err)
	}
	return nil
}

// DeclareQueue declares the durable queue shared by publisher and worker.
func DeclareQueue(ch *amqp.Channel, name string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		name,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("declare queue %s failed: %w", name, err)
	}
	return q, nil
}
