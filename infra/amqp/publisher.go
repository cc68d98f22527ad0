// Package amqp publishes task queue events to a RabbitMQ topic exchange.
// Routing keys follow task.<status>, so a crew app can bind task.ready
// while reporting binds task.*.
package amqp

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/kilianp07/bikeflow/core/events"
	"github.com/kilianp07/bikeflow/infra/logger"
)

// Config holds the broker connection and exchange settings.
type Config struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	VHost    string `json:"vhost"`
	UseTLS   bool   `json:"use_tls"`
	Exchange string `json:"exchange"`
	// ConfirmTimeout bounds the wait for a publisher confirm.
	ConfirmTimeout time.Duration `json:"confirm_timeout"`
}

// DefaultExchange is declared when Config.Exchange is empty.
const DefaultExchange = "tasks_topic"

// URL renders the AMQP connection URL.
func (c Config) URL() string {
	scheme := "amqp"
	if c.UseTLS {
		scheme = "amqps"
	}
	vhost := c.VHost
	if vhost == "" {
		vhost = "/"
	}
	port := c.Port
	if port == 0 {
		port = 5672
	}
	return fmt.Sprintf("%s://%s:%s@%s:%d/%s", scheme, c.User, c.Password, c.Host, port, vhost)
}

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher implements notify.Notifier with publisher confirms.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	acks     <-chan amqp.Confirmation
	exchange string
	timeout  time.Duration
	log      logger.Logger
}

// Dial connects, declares the exchange and enables publisher confirms.
func Dial(cfg Config) (*Publisher, error) {
	var (
		conn *amqp.Connection
		err  error
	)
	if cfg.UseTLS {
		conn, err = amqp.DialTLS(cfg.URL(), &tls.Config{MinVersion: tls.VersionTLS12})
	} else {
		conn, err = amqp.Dial(cfg.URL())
	}
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	exchange := cfg.Exchange
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 1))
	p := newPublisher(ch, acks, exchange, cfg.ConfirmTimeout)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, acks <-chan amqp.Confirmation, exchange string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{ch: ch, acks: acks, exchange: exchange, timeout: timeout, log: logger.New("amqp_notifier")}
}

// RoutingKey returns the key an event is published with.
func RoutingKey(ev events.TaskEvent) string {
	return "task." + ev.Task.Status.String()
}

// Notify publishes the event persistently and waits for the broker ack.
// Publishes are serialised so confirms match their message.
func (p *Publisher) Notify(ctx context.Context, ev events.TaskEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(ev), false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    ev.ID,
		Timestamp:    ev.Time.UTC(),
		Type:         string(ev.Action),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()
	select {
	case conf, ok := <-p.acks:
		if !ok {
			return errors.New("amqp channel closed before confirm")
		}
		if !conf.Ack {
			return fmt.Errorf("broker nacked event %s", ev.ID)
		}
		p.log.Debugf("published %s for task %d", RoutingKey(ev), ev.Task.ID)
		return nil
	case <-timer.C:
		return fmt.Errorf("no confirm for event %s within %s", ev.ID, p.timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
