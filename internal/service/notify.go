package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/hypecast/kolport/internal/config"
	"github.com/hypecast/kolport/internal/models"
)

// DispatchReceipt confirms a mail left the gateway. Transitions gated by a
// dispatch only commit once a receipt exists.
type DispatchReceipt struct {
	MessageID string `json:"message_id"`
}

// NotificationGateway dispatches a templated mail from a causer to a
// recipient. The dispatch record is written through tx so it commits or rolls
// back with the transition it confirms. Returning an error aborts the caller's
// transaction.
type NotificationGateway interface {
	Send(ctx context.Context, tx *gorm.DB, causerID, recipientID uint, kind models.MailKind, params map[string]any) (*DispatchReceipt, error)
}

// AdminNotifier is the fire-and-forget push channel towards admin dashboards.
// Never part of a transaction.
type AdminNotifier interface {
	PushAdminNotify(ctx context.Context, message, kind string)
}

// Mailer implements NotificationGateway over RabbitMQ: it records a
// MailDispatch row through the caller's transaction handle and publishes the
// rendered message to a topic exchange. Either step failing fails the send.
type Mailer struct {
	config  *config.MailerConfig
	channel *amqp.Channel
	logger  *zap.Logger
}

func NewMailer(cfg *config.MailerConfig, conn *amqp.Connection, logger *zap.Logger) (*Mailer, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false,
		false,
		nil,
	); err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Mailer{
		config:  cfg,
		channel: ch,
		logger:  logger,
	}, nil
}

type mailEnvelope struct {
	MessageID   string          `json:"message_id"`
	CauserID    uint            `json:"causer_id"`
	RecipientID uint            `json:"recipient_id"`
	Kind        models.MailKind `json:"kind"`
	Params      map[string]any  `json:"params"`
	SentAt      time.Time       `json:"sent_at"`
}

func (m *Mailer) Send(ctx context.Context, tx *gorm.DB, causerID, recipientID uint, kind models.MailKind, params map[string]any) (*DispatchReceipt, error) {
	messageID := uuid.NewString()

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mail params: %w", err)
	}

	dispatch := models.MailDispatch{
		MessageID:   messageID,
		CauserID:    causerID,
		RecipientID: recipientID,
		Kind:        kind,
		Params:      string(rawParams),
	}
	if err := tx.Create(&dispatch).Error; err != nil {
		return nil, fmt.Errorf("failed to record mail dispatch: %w", err)
	}

	body, err := json.Marshal(mailEnvelope{
		MessageID:   messageID,
		CauserID:    causerID,
		RecipientID: recipientID,
		Kind:        kind,
		Params:      params,
		SentAt:      time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mail envelope: %w", err)
	}

	if err := m.channel.PublishWithContext(ctx,
		m.config.Exchange,
		m.config.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   messageID,
			Body:        body,
		},
	); err != nil {
		return nil, fmt.Errorf("failed to publish mail: %w", err)
	}

	m.logger.Info("Mail dispatched",
		zap.String("message_id", messageID),
		zap.String("kind", string(kind)),
		zap.Uint("recipient_id", recipientID))

	return &DispatchReceipt{MessageID: messageID}, nil
}

// AdminPush implements AdminNotifier over a redis list consumed by the admin
// dashboard. Errors are logged and dropped.
type AdminPush struct {
	config *config.AdminPushConfig
	client *redis.Client
	logger *zap.Logger
}

func NewAdminPush(cfg *config.AdminPushConfig, logger *zap.Logger) (*AdminPush, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		opt = &redis.Options{Addr: cfg.RedisURL}
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &AdminPush{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

func (p *AdminPush) PushAdminNotify(ctx context.Context, message, kind string) {
	payload, err := json.Marshal(map[string]any{
		"message": message,
		"kind":    kind,
		"time":    time.Now().Unix(),
	})
	if err != nil {
		p.logger.Error("Failed to marshal admin notify", zap.Error(err))
		return
	}

	if err := p.client.LPush(ctx, p.config.Queue, payload).Err(); err != nil {
		p.logger.Error("Failed to push admin notify", zap.String("kind", kind), zap.Error(err))
	}
}

func (p *AdminPush) Close() error {
	return p.client.Close()
}
