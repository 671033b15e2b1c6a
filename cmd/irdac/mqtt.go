package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// mqttPublishClient is the part of mqtt.Client the publisher needs.
type mqttPublishClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

var errPublishTimeout = errors.New("publish timed out")

// MQTTBridge publishes volume and source state and turns messages on the set
// topics into daemon events.
type MQTTBridge struct {
	cfg        *MQTTConfig
	labels     map[Source]string
	events     chan<- Event
	nowPlaying *nowPlayingTracker
	logger     *slog.Logger

	client  mqtt.Client
	pub     mqttPublishClient
	timeout time.Duration
	ctx     context.Context

	published atomic.Int64
	failures  atomic.Int64
}

func NewMQTTBridge(cfg *MQTTConfig, hostname string, labels map[Source]string, events chan<- Event, np *nowPlayingTracker, logger *slog.Logger) *MQTTBridge {
	b := &MQTTBridge{
		cfg:        cfg,
		labels:     labels,
		events:     events,
		nowPlaying: np,
		logger:     logger,
		ctx:        context.Background(),
		timeout:    time.Duration(cfg.PublishTimeoutMS) * time.Millisecond,
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = hostname + "-" + uuid.New().String()[:8]
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetMaxReconnectInterval(30 * time.Second).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("mqtt connection lost", "error", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	b.client = mqtt.NewClient(opts)
	b.pub = b.client
	return b
}

// Run connects and stays up until ctx is canceled. A failed first connection
// is returned so the daemon exits and gets restarted.
func (b *MQTTBridge) Run(ctx context.Context) error {
	b.ctx = ctx
	tok := b.client.Connect()
	select {
	case <-tok.Done():
	case <-ctx.Done():
		return nil
	}
	if err := tok.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.cfg.Broker, err)
	}
	b.logger.Info("mqtt connected", "broker", b.cfg.Broker)

	<-ctx.Done()
	b.client.Disconnect(250)
	b.logger.Info("mqtt disconnected",
		"published", b.published.Load(),
		"failures", b.Failures())
	return nil
}

func (b *MQTTBridge) topics() map[string]byte {
	qos := byte(b.cfg.QoS)
	t := b.cfg.Topics
	out := make(map[string]byte)
	for _, topic := range []string{t.VolumeSet, t.SourceSet, t.DisplaySet, t.MoodeSource, t.MoodeDetails} {
		if topic != "" {
			out[topic] = qos
		}
	}
	return out
}

// onConnect runs on every (re)connect. Subscriptions are not persisted by the
// broker for a clean session, so they are renewed here, and the retained
// state topics are refreshed from the daemon.
func (b *MQTTBridge) onConnect(c mqtt.Client) {
	go b.announce()

	filters := b.topics()
	tok := c.SubscribeMultiple(filters, func(_ mqtt.Client, m mqtt.Message) {
		b.handleMessage(m.Topic(), m.Payload())
	})
	go func() {
		if !tok.WaitTimeout(b.timeout) {
			b.logger.Warn("mqtt subscribe timed out")
			return
		}
		if err := tok.Error(); err != nil {
			b.logger.Error("mqtt subscribe failed", "error", err)
			return
		}
		b.logger.Info("mqtt subscribed", "topics", len(filters))
	}()
}

// handleMessage converts one inbound message into an event. Malformed payloads
// are logged and dropped.
func (b *MQTTBridge) handleMessage(topic string, payload []byte) {
	t := b.cfg.Topics
	var ev Event

	switch topic {
	case t.VolumeSet:
		e, err := parseVolumePayload(payload, "mqtt")
		if err != nil {
			b.logger.Warn("mqtt: bad volume payload", "error", err)
			return
		}
		ev = e
	case t.SourceSet:
		e, err := parseSourcePayload(payload, b.labels, "mqtt")
		if err != nil {
			b.logger.Warn("mqtt: bad source payload", "error", err)
			return
		}
		ev = e
	case t.DisplaySet:
		ev = DisplayMessage{Text: string(payload), Origin: "mqtt"}
	case t.MoodeSource:
		ev = NowPlayingChanged{NowPlaying: b.nowPlaying.SetSource(string(payload))}
	case t.MoodeDetails:
		ev = NowPlayingChanged{NowPlaying: b.nowPlaying.SetDetails(string(payload))}
	default:
		b.logger.Debug("mqtt: unexpected topic", "topic", topic)
		return
	}
	trySend(b.events, ev, b.logger)
}

// announce publishes the daemon's current volume and source. Local state
// always wins over whatever the broker retained while we were away.
func (b *MQTTBridge) announce() {
	snap, err := requestSnapshot(b.ctx, b.events, snapshotTimeout)
	if err != nil {
		b.logger.Warn("mqtt: state announce skipped", "error", err)
		return
	}
	b.PublishVolume(snap.Step, snap.DB, time.Now())
	b.PublishSource(snap.Source, time.Now())
}

func (b *MQTTBridge) PublishVolume(step int, _ float64, _ time.Time) {
	b.publish(b.cfg.Topics.VolumeState, strconv.Itoa(step))
}

func (b *MQTTBridge) PublishSource(src Source, _ time.Time) {
	b.publish(b.cfg.Topics.SourceState, src.String())
}

// publish hands the message to the client and watches the outcome off the
// caller's goroutine. Failures are logged and counted only.
func (b *MQTTBridge) publish(topic, payload string) {
	if b.client != nil && !b.client.IsConnectionOpen() {
		// announce catches the broker up on the next connect.
		n := b.failures.Add(1)
		b.logger.Debug("mqtt not connected, publish skipped", "topic", topic, "failures", n)
		return
	}
	tok := b.pub.Publish(topic, byte(b.cfg.QoS), b.cfg.Retain, payload)
	go func() {
		err := errPublishTimeout
		if tok.WaitTimeout(b.timeout) {
			err = tok.Error()
		}
		if err != nil {
			n := b.failures.Add(1)
			b.logger.Warn("mqtt publish failed", "topic", topic, "error", err, "failures", n)
			return
		}
		b.published.Add(1)
		b.logger.Debug("mqtt published", "topic", topic, "payload", payload)
	}()
}

// Failures reports how many publishes have failed since start.
func (b *MQTTBridge) Failures() int64 { return b.failures.Load() }
