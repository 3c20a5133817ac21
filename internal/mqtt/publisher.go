package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/nugget/jarvis/internal/config"
	"github.com/nugget/jarvis/internal/scheduler"
)

// ErrNotStarted is returned by publish operations before [Publisher.Start]
// has established a connection manager.
var ErrNotStarted = errors.New("mqtt publisher not started")

// TriggerEvent is the payload published when an automation fires.
type TriggerEvent struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	TaskType    string          `json:"task_type"`
	Schedule    string          `json:"schedule"`
	Config      json.RawMessage `json:"config"`
	TriggeredAt string          `json:"triggered_at"`
	Instance    string          `json:"instance,omitempty"`
}

// NewTriggerEvent builds the event for a fired automation.
func NewTriggerEvent(a *scheduler.Automation, at time.Time, instanceID string) TriggerEvent {
	cfg := a.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage("{}")
	}
	return TriggerEvent{
		ID:          a.ID,
		Name:        a.Name,
		TaskType:    string(a.TaskType),
		Schedule:    a.Schedule,
		Config:      cfg,
		TriggeredAt: at.UTC().Format(time.RFC3339),
		Instance:    instanceID,
	}
}

// Publisher manages the MQTT connection, announces availability on
// (re-)connect, and publishes automation trigger events.
type Publisher struct {
	cfg        config.MQTTConfig
	instanceID string
	logger     *slog.Logger
	commands   CommandFunc
	limiter    *messageRateLimiter
	cm         atomic.Pointer[autopaho.ConnectionManager]
}

// New creates a Publisher but does not connect. Call [Publisher.Start]
// to begin the connection.
func New(cfg config.MQTTConfig, instanceID string, logger *slog.Logger) *Publisher {
	return &Publisher{
		cfg:        cfg,
		instanceID: instanceID,
		logger:     logger,
	}
}

// HandleCommands routes messages on the command topic to fn. It must
// be called before [Publisher.Start].
func (p *Publisher) HandleCommands(fn CommandFunc) {
	p.commands = fn
	limit := int64(p.cfg.RateLimit)
	if limit <= 0 {
		limit = 30
	}
	p.limiter = newMessageRateLimiter(limit, time.Minute, p.logger)
}

// Start connects to the MQTT broker. It blocks until ctx is cancelled.
// On every (re-)connect it publishes a birth message and, when
// commands are enabled, subscribes to the command topic.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   p.AvailabilityTopic(),
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
			if p.commands != nil {
				p.subscribeCommands(ctx, cm)
			}
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}
	if p.commands != nil {
		pahoCfg.ClientConfig.OnPublishReceived = []func(paho.PublishReceived) (bool, error){
			func(pr paho.PublishReceived) (bool, error) {
				p.receive(ctx, pr.Packet.Topic, pr.Packet.Payload)
				return true, nil
			},
		}
	}

	// Enable TLS for mqtts:// or ssl:// schemes.
	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm.Store(cm)

	connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		// autopaho keeps retrying in the background.
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}

	if p.limiter != nil {
		go p.limiter.start(ctx)
	}

	<-ctx.Done()
	return nil
}

// Stop publishes an "offline" availability message and closes the MQTT
// connection. The provided context bounds both steps.
func (p *Publisher) Stop(ctx context.Context) error {
	cm := p.cm.Load()
	if cm == nil {
		return nil
	}
	p.publishAvailability(ctx, cm, "offline")
	return cm.Disconnect(ctx)
}

// AwaitConnection blocks until the MQTT broker connection is
// established or ctx expires.
func (p *Publisher) AwaitConnection(ctx context.Context) error {
	cm := p.cm.Load()
	if cm == nil {
		return ErrNotStarted
	}
	return cm.AwaitConnection(ctx)
}

// AutomationTriggered publishes the trigger event for a fired
// automation. It satisfies [scheduler.Notifier].
func (p *Publisher) AutomationTriggered(ctx context.Context, a *scheduler.Automation, at time.Time) error {
	payload, err := json.Marshal(NewTriggerEvent(a, at, p.instanceID))
	if err != nil {
		return fmt.Errorf("marshal trigger event: %w", err)
	}
	topic := p.TriggerTopic(a.ID)
	if err := p.publish(ctx, topic, payload, false); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	p.logger.Debug("mqtt trigger published", "topic", topic, "automation", a.Name)
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	cm := p.cm.Load()
	if cm == nil {
		return ErrNotStarted
	}
	_, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     1,
		Retain:  retain,
	})
	return err
}

// --- Topic helpers ---

// AvailabilityTopic is the retained online/offline topic.
func (p *Publisher) AvailabilityTopic() string {
	return p.cfg.BaseTopic + "/availability"
}

// TriggerTopic is where the trigger event for automation id goes.
func (p *Publisher) TriggerTopic(id string) string {
	return p.cfg.BaseTopic + "/automations/" + id + "/triggered"
}

// CommandTopic is the inbound command topic.
func (p *Publisher) CommandTopic() string {
	return p.cfg.BaseTopic + "/command"
}

// ReplyTopic carries replies to inbound commands.
func (p *Publisher) ReplyTopic() string {
	return p.cfg.BaseTopic + "/reply"
}

func (p *Publisher) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   p.AvailabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed",
			"status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}

func (p *Publisher) subscribeCommands(ctx context.Context, cm *autopaho.ConnectionManager) {
	topic := p.CommandTopic()
	if _, err := cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: topic, QoS: 1}},
	}); err != nil {
		p.logger.Warn("mqtt subscribe failed", "topic", topic, "error", err)
		return
	}
	p.logger.Info("mqtt subscribed", "topic", topic)
}
