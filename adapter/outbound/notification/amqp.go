package notification

import (
	"context"
	"fmt"
	"io"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ajkula/notifytrigger/domain/model"
	"github.com/ajkula/notifytrigger/domain/port/outbound"
)

// eventTypeHeader carries the notification type when the delivery Type property is empty
const eventTypeHeader = "eventType"

// AMQPSource consumes notifications from a RabbitMQ queue
type AMQPSource struct {
	uri         string
	queue       string
	consumerTag string
	logger      outbound.Logger
}

var _ outbound.NotificationSource = (*AMQPSource)(nil)

func NewAMQPSource(uri, queue, consumerTag string, logger outbound.Logger) *AMQPSource {
	return &AMQPSource{
		uri:         uri,
		queue:       queue,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

// Connect opens a connection and a channel, then starts a manual-ack consumer
// with a prefetch of one so the queue order is kept
func (s *AMQPSource) Connect(ctx context.Context) (outbound.NotificationStream, error) {
	conn, err := amqp.Dial(s.uri)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to broker: %v", model.ErrTransport, err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: opening channel: %v", model.ErrTransport, err)
	}

	if err := ch.Qos(1, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setting qos: %v", model.ErrTransport, err)
	}

	closed := ch.NotifyClose(make(chan *amqp.Error, 1))

	// queue name, consumer tag, auto-acknowledge, exclusive, no-local, no-wait, extraArgs
	deliveries, err := ch.Consume(s.queue, s.consumerTag, false, false, false, false, nil)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: consuming %s: %v", model.ErrTransport, s.queue, err)
	}

	s.logger.Info("Consuming notifications", "queue", s.queue)

	return &amqpStream{
		deliveries: deliveries,
		closed:     closed,
		closer: func() error {
			_ = ch.Close()
			return conn.Close()
		},
	}, nil
}

type amqpStream struct {
	deliveries <-chan amqp.Delivery
	closed     <-chan *amqp.Error
	closer     func() error
}

// Next returns the next delivery and acknowledges it
func (s *amqpStream) Next(ctx context.Context) (*model.Notification, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case delivery, ok := <-s.deliveries:
		if !ok {
			// the channel reports its close reason before closing consumers
			select {
			case amqpErr, ok := <-s.closed:
				if ok && amqpErr != nil {
					return nil, fmt.Errorf("%w: broker closed the channel: %v", model.ErrTransport, amqpErr)
				}
			default:
			}
			return nil, io.EOF
		}

		if err := delivery.Ack(false); err != nil {
			return nil, fmt.Errorf("%w: acknowledging delivery: %v", model.ErrTransport, err)
		}
		return deliveryNotification(delivery), nil
	}
}

func (s *amqpStream) Close() error {
	return s.closer()
}

func deliveryNotification(delivery amqp.Delivery) *model.Notification {
	notificationType := delivery.Type
	if notificationType == "" {
		if header, ok := delivery.Headers[eventTypeHeader].(string); ok {
			notificationType = header
		}
	}

	return &model.Notification{
		Type: notificationType,
		Body: delivery.Body,
	}
}
