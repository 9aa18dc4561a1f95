package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/smartess/backend/config"
	"github.com/smartess/backend/internal/models"
	"github.com/smartess/backend/internal/realtime"
	"github.com/smartess/backend/pkg/queue"
)

// Message is a device event published by a hub on the alerts routing key.
type Message struct {
	HubIP     string `json:"hub_ip"`
	Device    string `json:"device"`
	State     string `json:"state"`
	Message   string `json:"message"`
	TimeFired string `json:"time_fired"`
	HubID     string `json:"hub_id,omitempty"`
}

// Store persists alerts. Insert returns the project that owns the alert's hub.
type Store interface {
	Insert(ctx context.Context, a *models.Alert) (string, error)
}

// Broadcaster delivers realtime events to a room.
type Broadcaster interface {
	Broadcast(ctx context.Context, room string, ev realtime.Event) error
}

// DeadLetters parks messages that are dropped.
type DeadLetters interface {
	Push(ctx context.Context, dl queue.DeadLetter) error
}

// outcome is what the consumer does with a delivery.
type outcome int

const (
	ack outcome = iota
	reject
	requeue
)

func (o outcome) String() string {
	switch o {
	case ack:
		return "ack"
	case reject:
		return "reject"
	}
	return "requeue"
}

const (
	minBackoff  = time.Second
	maxBackoff  = 30 * time.Second
	prefetch    = 50
	source      = "alerts"
	alertsInfix = ".alerts."
)

// Consumer reads alert messages from RabbitMQ, stores them and pushes them to dashboards.
type Consumer struct {
	cfg    config.RabbitMQConfig
	store  Store
	events Broadcaster
	dlq    DeadLetters
	logger *zap.Logger
	now    func() time.Time
}

// NewConsumer creates an alert consumer. events and dlq may be nil.
func NewConsumer(cfg config.RabbitMQConfig, store Store, events Broadcaster, dlq DeadLetters, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{cfg: cfg, store: store, events: events, dlq: dlq, logger: logger, now: time.Now}
}

// Run dials the broker and consumes until ctx is done, reconnecting with exponential backoff.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		conn, err := amqp.Dial(c.cfg.URL)
		if err == nil {
			backoff = minBackoff
			err = c.consume(ctx, conn)
			_ = conn.Close()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("alert consumer disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < maxBackoff {
			backoff *= 2
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(prefetch, 0, false); err != nil {
		c.logger.Warn("set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(c.cfg.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(c.cfg.Queue, c.cfg.RoutingKey, c.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(c.cfg.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("alert consumer started",
		zap.String("exchange", c.cfg.Exchange), zap.String("queue", c.cfg.Queue), zap.String("routing_key", c.cfg.RoutingKey))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			o := c.handle(ctx, d.Body, d.RoutingKey, d.Redelivered)
			c.logger.Debug("alert delivery handled", zap.Uint64("tag", d.DeliveryTag), zap.Stringer("outcome", o))
			switch o {
			case ack:
				_ = d.Ack(false)
			case reject:
				_ = d.Nack(false, false)
			case requeue:
				_ = d.Nack(false, true)
			}
		}
	}
}

// handle stores one delivery. Malformed messages are rejected. A failed insert is requeued
// once; a redelivered message that fails again is rejected. Rejected messages go to the DLQ.
func (c *Consumer) handle(ctx context.Context, body []byte, routingKey string, redelivered bool) outcome {
	alert, err := c.decode(body, routingKey)
	if err != nil {
		c.logger.Error("malformed alert", zap.Error(err), zap.String("routing_key", routingKey), zap.ByteString("body", body))
		c.deadLetter(ctx, body, routingKey, err)
		return reject
	}

	projID, err := c.store.Insert(ctx, alert)
	switch {
	case errors.Is(err, ErrUnknownHub):
		c.logger.Error("alert for unknown hub", zap.String("hub_id", alert.HubID))
		c.deadLetter(ctx, body, routingKey, err)
		return reject
	case err != nil && !redelivered:
		c.logger.Warn("alert insert failed, requeueing", zap.String("hub_id", alert.HubID), zap.Error(err))
		return requeue
	case err != nil:
		c.logger.Error("alert insert failed after redelivery, dropping", zap.String("hub_id", alert.HubID), zap.Error(err))
		c.deadLetter(ctx, body, routingKey, err)
		return reject
	}

	c.logger.Info("alert stored",
		zap.Int64("alert_id", alert.AlertID), zap.String("hub_id", alert.HubID),
		zap.String("device_id", alert.DeviceID), zap.String("state", alert.Description))

	if c.events != nil {
		hub := &models.Hub{HubID: alert.HubID, ProjID: projID}
		view := alert.View(hub)
		view.UnitNumber = nil
		ev := realtime.Event{Type: realtime.EventAlert, Payload: view}
		if err := c.events.Broadcast(ctx, realtime.ProjectRoom(projID), ev); err != nil {
			c.logger.Warn("alert publish failed", zap.Int64("alert_id", alert.AlertID), zap.Error(err))
		}
	}
	return ack
}

// decode builds an alert row from a message. The hub ID comes from the body or, when absent,
// from the routing key segment before ".alerts.".
func (c *Consumer) decode(body []byte, routingKey string) (*models.Alert, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	hubID := strings.TrimSpace(m.HubID)
	if hubID == "" {
		hubID = hubFromRoutingKey(routingKey)
	}
	if hubID == "" {
		return nil, errors.New("no hub id in message or routing key")
	}
	if m.Device == "" && m.Message == "" {
		return nil, errors.New("empty alert")
	}

	fired := c.now().UTC()
	if m.TimeFired != "" {
		t, err := time.Parse(time.RFC3339Nano, m.TimeFired)
		if err != nil {
			return nil, fmt.Errorf("time_fired: %w", err)
		}
		fired = t.UTC()
	}
	return &models.Alert{
		HubID:       hubID,
		Description: m.State,
		Message:     m.Message,
		Active:      false,
		Type:        "default",
		CreatedAt:   fired,
		DeviceID:    m.Device,
		HubIP:       m.HubIP,
	}, nil
}

func hubFromRoutingKey(key string) string {
	i := strings.Index(key, alertsInfix)
	if i <= 0 {
		return ""
	}
	prefix := key[:i]
	if j := strings.LastIndexByte(prefix, '.'); j >= 0 {
		prefix = prefix[j+1:]
	}
	return prefix
}

func (c *Consumer) deadLetter(ctx context.Context, body []byte, routingKey string, cause error) {
	if c.dlq == nil {
		return
	}
	dl := queue.DeadLetter{Source: source, RoutingKey: routingKey, Body: string(body), Reason: cause.Error()}
	if err := c.dlq.Push(ctx, dl); err != nil {
		c.logger.Error("dlq push failed", zap.String("routing_key", routingKey), zap.Error(err))
	}
}
