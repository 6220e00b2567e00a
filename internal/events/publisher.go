package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"whatsapp-inbox/internal/models"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

const (
	KeyMessageReceived = "whatsapp.message.received"
	KeyMessageSent     = "whatsapp.message.sent"
	KeyMessageStatus   = "whatsapp.message.status"
)

// Envelope is the body of every published event.
type Envelope struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	UserID     string      `json:"user_id"`
	OccurredAt time.Time   `json:"occurred_at"`
	Data       interface{} `json:"data"`
}

type MessageData struct {
	Contact *models.Contact `json:"contact"`
	Message *models.Message `json:"message"`
}

type MessageStatusData struct {
	MessageID string    `json:"message_id"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type Options struct {
	URL            string
	Exchange       string
	RetryAttempts  int
	RetryDelay     time.Duration
	PublishTimeout time.Duration
	QueueSize      int
}

type job struct {
	key string
	env Envelope
}

type dialFunc func(url string) (*amqp091.Connection, error)

// Publisher sends applied webhook events to a topic exchange with publisher
// confirms. Events are queued and published by Run, so a slow broker never
// holds up a webhook response; a full queue drops the event. When the broker
// closes the connection Run redials with backoff.
type Publisher struct {
	url        string
	exchange   string
	timeout    time.Duration
	retryDelay time.Duration
	dial       dialFunc

	mu   sync.RWMutex
	conn *amqp091.Connection

	queue chan job
	send  func(ctx context.Context, key string, env Envelope) error
}

func New(ctx context.Context, opts Options) (*Publisher, error) {
	if opts.RetryAttempts <= 0 {
		opts.RetryAttempts = 1
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Second
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = 5 * time.Second
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}

	p := &Publisher{
		url:        opts.URL,
		exchange:   opts.Exchange,
		timeout:    opts.PublishTimeout,
		retryDelay: opts.RetryDelay,
		dial:       amqp091.Dial,
		queue:      make(chan job, opts.QueueSize),
	}
	p.send = p.Publish

	conn, err := dialWithRetry(ctx, p.dial, opts.URL, opts.RetryAttempts, opts.RetryDelay)
	if err != nil {
		return nil, err
	}
	if err := p.declare(conn); err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn

	log.Info().Str("exchange", opts.Exchange).Msg("Event publisher connected")
	return p, nil
}

func (p *Publisher) declare(conn *amqp091.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	return nil
}

const maxDelay = 30 * time.Second

// dialWithRetry gives up after attempts dials; attempts <= 0 keeps trying
// until ctx is done.
func dialWithRetry(ctx context.Context, dial dialFunc, url string, attempts int, delay time.Duration) (*amqp091.Connection, error) {
	var lastErr error
	sleep := delay
	for i := 1; attempts <= 0 || i <= attempts; i++ {
		conn, err := dial(url)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		if i == attempts {
			break
		}

		log.Warn().Err(err).Int("attempt", i).Dur("sleep", sleep).Msg("AMQP dial failed")
		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.New("dial cancelled: " + ctx.Err().Error())
		case <-timer.C:
		}
		if sleep *= 2; sleep > maxDelay {
			sleep = maxDelay
		}
	}
	return nil, fmt.Errorf("connect to broker after %d attempts: %w", attempts, lastErr)
}

// Run publishes queued events and keeps the connection alive until ctx is
// done. Events still queued at that point are discarded.
func (p *Publisher) Run(ctx context.Context) {
	closed := p.notifyClose()
	for {
		select {
		case <-ctx.Done():
			return

		case j := <-p.queue:
			if err := p.send(ctx, j.key, j.env); err != nil {
				log.Error().Err(err).Str("type", j.key).Str("user_id", j.env.UserID).Msg("Failed to publish event")
			}

		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				// Closed by us.
				return
			}
			log.Error().Err(amqpErr).Msg("AMQP connection closed, reconnecting")
			if err := p.reconnect(ctx); err != nil {
				return
			}
			closed = p.notifyClose()
		}
	}
}

func (p *Publisher) notifyClose() chan *amqp091.Error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.NotifyClose(make(chan *amqp091.Error, 1))
}

func (p *Publisher) reconnect(ctx context.Context) error {
	for {
		conn, err := dialWithRetry(ctx, p.dial, p.url, 0, p.retryDelay)
		if err != nil {
			return err
		}
		if err := p.declare(conn); err != nil {
			log.Error().Err(err).Msg("AMQP redeclare failed")
			conn.Close()
			continue
		}
		p.mu.Lock()
		p.conn = conn
		p.mu.Unlock()
		log.Info().Str("exchange", p.exchange).Msg("Event publisher reconnected")
		return nil
	}
}

func (p *Publisher) connection() (*amqp091.Connection, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil || p.conn.IsClosed() {
		return nil, errors.New("broker connection is not open")
	}
	return p.conn, nil
}

// enqueue never blocks.
func (p *Publisher) enqueue(key string, env Envelope) {
	select {
	case p.queue <- job{key: key, env: env}:
	default:
		log.Warn().Str("type", key).Str("user_id", env.UserID).Msg("Event queue full, event dropped")
	}
}

// Publish sends env under key and waits for the broker's confirm.
func (p *Publisher) Publish(ctx context.Context, key string, env Envelope) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	conn, err := p.connection()
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()
	if err := ch.Confirm(false); err != nil {
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		return err
	}

	dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.ID,
		Timestamp:    env.OccurredAt,
		Type:         env.Type,
		Body:         body,
	})
	if err != nil {
		return err
	}
	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return err
	}
	if !acked {
		return errors.New("broker nacked event")
	}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

func newEnvelope(kind, userID string, data interface{}) Envelope {
	return Envelope{
		ID:         uuid.NewString(),
		Type:       kind,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

// messageData snapshots the rows; they are encoded later on the Run goroutine.
func messageData(contact *models.Contact, msg *models.Message) MessageData {
	c, m := *contact, *msg
	return MessageData{Contact: &c, Message: &m}
}

func (p *Publisher) MessageReceived(_ context.Context, contact *models.Contact, msg *models.Message) {
	p.enqueue(KeyMessageReceived, newEnvelope(KeyMessageReceived, msg.UserID, messageData(contact, msg)))
}

func (p *Publisher) MessageSent(_ context.Context, contact *models.Contact, msg *models.Message) {
	p.enqueue(KeyMessageSent, newEnvelope(KeyMessageSent, msg.UserID, messageData(contact, msg)))
}

func (p *Publisher) StatusUpdated(_ context.Context, userID, providerID, status string, ts time.Time) {
	p.enqueue(KeyMessageStatus, newEnvelope(KeyMessageStatus, userID, MessageStatusData{MessageID: providerID, Status: status, Timestamp: ts}))
}
