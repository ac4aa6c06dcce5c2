// Package transport connects the controller to the MQTT broker.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"petfeeder/internal/config"
	"petfeeder/internal/logger"
	"petfeeder/internal/models"
	"petfeeder/internal/service"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/time/rate"
)

// Topic names under <prefix>/<deviceID>/.
const (
	TopicSetSchedule = "setFeedingSchedule"
	TopicGetSchedule = "getFeedingSchedule"
	TopicCommand     = "command"
	TopicSchedule    = "feedingSchedule"
	TopicState       = "stateChange"
	TopicIPAddress   = "ipAddress"
	TopicLogs        = "logs"
)

const (
	connectTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // ms
	qosAtLeastOnce    = byte(1)
)

// Submitter accepts commands for the control loop.
type Submitter interface {
	Submit(cmd service.Command) error
}

// broker is the subset of mqtt.Client the adapter uses.
type broker interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
}

// MQTT maps broker topics to controller commands and publishes state
// changes. It implements service.Notifier.
type MQTT struct {
	deviceID string
	prefix   string
	client   broker
	cmds     Submitter
	log      *logger.Logger

	limiter *rate.Limiter
	netUp   func() bool
	localIP func() (string, error)

	connected atomic.Bool
	lost      chan struct{}
}

// NewMQTT builds the adapter and its paho client. Reconnects are driven by
// Run, not by paho. Bind must be called before Run.
func NewMQTT(cfg config.MQTTConfig, deviceID string, log *logger.Logger) *MQTT {
	m := newAdapter(cfg, deviceID, log)

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(deviceID).
		SetAutoReconnect(false).
		SetConnectRetry(false).
		SetOrderMatters(false).
		SetConnectTimeout(connectTimeout).
		SetOnConnectHandler(func(mqtt.Client) { m.onConnect() }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { m.onLost(err) })
	m.client = mqtt.NewClient(opts)
	return m
}

func newAdapter(cfg config.MQTTConfig, deviceID string, log *logger.Logger) *MQTT {
	retry := cfg.RetryInterval
	if retry <= 0 {
		retry = 10 * time.Second
	}
	prefix := strings.Trim(cfg.TopicPrefix, "/")
	if prefix == "" {
		prefix = "devices"
	}
	return &MQTT{
		deviceID: deviceID,
		prefix:   prefix,
		log:      log,
		limiter:  rate.NewLimiter(rate.Every(retry), 1),
		netUp:    networkUp,
		localIP:  primaryIPv4,
		lost:     make(chan struct{}, 1),
	}
}

// Bind sets where inbound commands go.
func (m *MQTT) Bind(cmds Submitter) { m.cmds = cmds }

// Topic returns the full topic for name.
func (m *MQTT) Topic(name string) string {
	return fmt.Sprintf("%s/%s/%s", m.prefix, m.deviceID, name)
}

// Run keeps the broker connection up until ctx is cancelled. Attempts are
// spaced by the retry interval and skipped while no interface is up.
func (m *MQTT) Run(ctx context.Context) {
	defer m.client.Disconnect(disconnectQuiesce)

	for {
		if m.client.IsConnected() {
			select {
			case <-ctx.Done():
				return
			case <-m.lost:
			}
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			return
		}
		if !m.netUp() {
			m.log.Debugw("mqtt_network_down")
			continue
		}
		if err := m.connect(); err != nil {
			m.log.Warnw("mqtt_connect_failed", "err", err)
		}
	}
}

var errConnectTimeout = errors.New("mqtt connect timed out")

func (m *MQTT) connect() error {
	tok := m.client.Connect()
	if !tok.WaitTimeout(connectTimeout) {
		return errConnectTimeout
	}
	return tok.Error()
}

var errSubscribeTimeout = errors.New("mqtt subscribe timed out")

func (m *MQTT) onConnect() {
	subs := []struct {
		topic string
		h     mqtt.MessageHandler
	}{
		{m.Topic(TopicSetSchedule), m.handleSetSchedule},
		{m.Topic(TopicGetSchedule), m.handleGetSchedule},
		{m.Topic(TopicCommand), m.handleCommand},
	}
	for _, sub := range subs {
		if err := m.subscribe(sub.topic, sub.h); err != nil {
			// drop the link so Run retries the whole handshake
			m.log.Errorw("mqtt_subscribe_failed", "topic", sub.topic, "err", err)
			m.client.Disconnect(disconnectQuiesce)
			m.onLost(err)
			return
		}
	}
	m.connected.Store(true)
	m.log.Infow("mqtt_connected")

	ip, err := m.localIP()
	if err != nil {
		m.log.Warnw("local_ip_lookup_failed", "err", err)
		return
	}
	m.client.Publish(m.Topic(TopicIPAddress), qosAtLeastOnce, false, ip)
}

func (m *MQTT) subscribe(topic string, h mqtt.MessageHandler) error {
	tok := m.client.Subscribe(topic, qosAtLeastOnce, h)
	if !tok.WaitTimeout(connectTimeout) {
		return errSubscribeTimeout
	}
	return tok.Error()
}

func (m *MQTT) onLost(err error) {
	m.connected.Store(false)
	m.log.Warnw("mqtt_connection_lost", "err", err)
	select {
	case m.lost <- struct{}{}:
	default:
	}
}

func (m *MQTT) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	token := strings.TrimSpace(string(msg.Payload()))
	if !strings.EqualFold(token, "feed") && !strings.EqualFold(token, "f") {
		m.log.Debugw("mqtt_command_ignored", "token", token)
		return
	}
	m.submit(service.Command{Kind: service.CommandFeed})
}

func (m *MQTT) handleSetSchedule(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	m.submit(service.Command{Kind: service.CommandSetSchedule, Payload: payload})
}

func (m *MQTT) handleGetSchedule(mqtt.Client, mqtt.Message) {
	m.submit(service.Command{Kind: service.CommandGetSchedule})
}

func (m *MQTT) submit(cmd service.Command) {
	if m.cmds == nil {
		m.log.Warnw("mqtt_command_unbound", "kind", cmd.Kind)
		return
	}
	if err := m.cmds.Submit(cmd); err != nil {
		m.log.Warnw("mqtt_command_dropped", "kind", cmd.Kind, "err", err)
	}
}

// PublishState publishes the new state retained so late subscribers see it.
func (m *MQTT) PublishState(state models.DispenseState) {
	if !m.Connected() {
		return
	}
	m.client.Publish(m.Topic(TopicState), qosAtLeastOnce, true, string(state))
}

// PublishSchedule publishes doc as-is; its length is the stored size.
func (m *MQTT) PublishSchedule(doc []byte) {
	if !m.Connected() {
		return
	}
	m.client.Publish(m.Topic(TopicSchedule), qosAtLeastOnce, false, doc)
}

func (m *MQTT) Connected() bool { return m.connected.Load() }
