package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTSource subscribes to an MQTT topic. MQTT 3.1.1 has no headers, so
// compressed payloads are recognised by the zstd magic bytes.
type MQTTSource struct {
	Broker   string // e.g. tcp://localhost:1883
	Topic    string
	ClientID string
	Username string
	Password string
	Log      *slog.Logger
}

func (s *MQTTSource) Name() string { return "mqtt" }

// Run connects, subscribes and hands every message to h until ctx is
// cancelled. The subscription is renewed on every reconnect.
func (s *MQTTSource) Run(ctx context.Context, h Handler) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}

	payloads := make(chan mqtt.Message, 256)
	onMessage := func(_ mqtt.Client, msg mqtt.Message) {
		select {
		case payloads <- msg:
		case <-ctx.Done():
		}
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.Broker)
	opts.SetClientID(s.ClientID)
	if s.Username != "" {
		opts.SetUsername(s.Username)
		opts.SetPassword(s.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		log.Info("mqtt connected", "broker", s.Broker)
		token := c.Subscribe(s.Topic, 1, onMessage)
		if !token.WaitTimeout(5 * time.Second) {
			log.Error("mqtt subscribe timeout", "topic", s.Topic)
			return
		}
		if err := token.Error(); err != nil {
			log.Error("mqtt subscribe failed", "topic", s.Topic, "error", err)
			return
		}
		log.Info("subscribed to mqtt topic", "topic", s.Topic, "qos", 1)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()

	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			client.Disconnect(0)
			return nil
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-payloads:
			if err := h(ctx, msg.Payload(), ""); err != nil {
				log.Warn("mqtt message rejected", "topic", msg.Topic(), "error", err)
			}
		}
	}
}
