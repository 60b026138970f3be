package broker

import (
	"context"
	"time"

	"github.com/zllovesuki/custbridge/customer"

	"github.com/goccy/go-json"
	extErrors "github.com/pkg/errors"
	"github.com/streadway/amqp"
)

var _ customer.EventPublisher = &AMQPBroker{}

const (
	customerEventsExchange string = "customer_events"
	customerCreatedKey            = "customer.created"
)

// channel is the subset of *amqp.Channel used by AMQPBroker
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// AMQPBroker publishes and consumes customer events via RabbitMQ
type AMQPBroker struct {
	connection *amqp.Connection
	channel    channel
}

// NewAMQPBroker returns a Message Broker over RabbitMQ
func NewAMQPBroker(amqpURI string) (*AMQPBroker, error) {
	amqpConn, err := amqp.Dial(amqpURI)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot connect to Message Broker")
	}
	amqpChan, err := amqpConn.Channel()
	if err != nil {
		amqpConn.Close()
		return nil, extErrors.Wrap(err, "Cannot create broker channel")
	}
	broker, err := newBroker(amqpConn, amqpChan)
	if err != nil {
		amqpConn.Close()
		return nil, err
	}
	return broker, nil
}

func newBroker(conn *amqp.Connection, ch channel) (*AMQPBroker, error) {
	broker := &AMQPBroker{
		connection: conn,
		channel:    ch,
	}
	if err := broker.setupEventExchange(); err != nil {
		return nil, extErrors.Wrap(err, "Cannot declare exchange for customer events")
	}
	return broker, nil
}

func (a *AMQPBroker) setupEventExchange() error {
	return a.channel.ExchangeDeclare(
		customerEventsExchange, // name
		"direct",               // type
		true,                   // durable
		false,                  // auto-deleted
		false,                  // internal
		false,                  // no-wait
		nil,                    // arguments
	)
}

// Close will close the channel and connection to release resources
func (a *AMQPBroker) Close() {
	a.channel.Close()
	if a.connection != nil {
		a.connection.Close()
	}
}

func (a *AMQPBroker) publishViaRoutingKey(exchange, routingKey string, body []byte) error {
	return a.channel.Publish(
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}

// PublishCustomerCreated announces a newly stored customer on the customer_events exchange
func (a *AMQPBroker) PublishCustomerCreated(ctx context.Context, e customer.CreatedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return extErrors.Wrap(err, "Cannot encode message into bytes")
	}
	if err := a.publishViaRoutingKey(customerEventsExchange, customerCreatedKey, body); err != nil {
		return extErrors.Wrap(err, "Cannot publish customer event")
	}
	return nil
}

func (a *AMQPBroker) setupQueue(qName string) error {
	_, err := a.channel.QueueDeclare(
		qName,
		true,
		false,
		false,
		false,
		nil,
	)
	return err
}

func (a *AMQPBroker) bindAndGetMsgChan(qName, exchange, routingKey string) (<-chan amqp.Delivery, error) {
	if err := a.channel.QueueBind(
		qName,
		routingKey,
		exchange,
		false,
		nil,
	); err != nil {
		return nil, err
	}
	return a.channel.Consume(
		qName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
}

// ReceiveCustomerCreated consumes customer.created events from the durable queue qName.
// Undecodable messages are dropped. The returned channel is closed when ctx is done
// or the broker connection goes away.
func (a *AMQPBroker) ReceiveCustomerCreated(ctx context.Context, qName string) (<-chan *customer.CreatedEvent, error) {
	if err := a.setupQueue(qName); err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup queue")
	}
	msgChan, err := a.bindAndGetMsgChan(qName, customerEventsExchange, customerCreatedKey)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot setup consumer")
	}
	rChan := make(chan *customer.CreatedEvent)
	go func() {
		defer close(rChan)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgChan:
				if !ok {
					return
				}
				var e customer.CreatedEvent
				if err := json.Unmarshal(d.Body, &e); err != nil {
					d.Nack(false, false)
					continue
				}
				select {
				case rChan <- &e:
					d.Ack(false)
				case <-ctx.Done():
					d.Nack(false, true)
					return
				}
			}
		}
	}()
	return rChan, nil
}
