package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gregoryjjb/gpiocount/controller"
)

var mlog zerolog.Logger

func init() {
	mlog = log.With().Str("component", "mqtt").Logger()
}

var ErrUnexpectedTopic = errors.New("unexpected MQTT topic")

// MQTTLogger routes paho's internal logging through zerolog.
type MQTTLogger struct {
	Logger zerolog.Logger
	Level  zerolog.Level
}

func (l MQTTLogger) Println(v ...interface{}) {
	l.Logger.WithLevel(l.Level).Msg(strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (l MQTTLogger) Printf(format string, v ...interface{}) {
	l.Logger.WithLevel(l.Level).Msgf(format, v...)
}

// MQTTBridge publishes counter events to <topic>/state and accepts
// attribute writes on <topic>/set/<attribute>.
type MQTTBridge struct {
	client  paho.Client
	topic   string
	ctrl    *controller.Controller
	enabled bool
}

// NewMQTTBridge returns a disabled bridge if no host is configured.
func NewMQTTBridge(cfg MQTTConfig, ctrl *controller.Controller) *MQTTBridge {
	b := &MQTTBridge{
		topic: cfg.Topic,
		ctrl:  ctrl,
	}

	if cfg.Host == "" {
		mlog.Info().Msg("MQTT disabled (no host configured)")
		return b
	}
	b.enabled = true

	broker := fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port)
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetKeepAlive(60 * time.Second).
		SetConnectionLostHandler(b.handleConnectionLost).
		SetOnConnectHandler(b.handleConnect)

	b.client = paho.NewClient(opts)

	paho.ERROR = MQTTLogger{Logger: mlog, Level: zerolog.ErrorLevel}
	paho.CRITICAL = MQTTLogger{Logger: mlog, Level: zerolog.ErrorLevel}
	paho.WARN = MQTTLogger{Logger: mlog, Level: zerolog.WarnLevel}

	mlog.Info().Str("broker", broker).Str("topic", cfg.Topic).Msg("MQTT configured")
	return b
}

func (b *MQTTBridge) IsEnabled() bool {
	return b.enabled
}

// Run connects and forwards events until ctx is done.
func (b *MQTTBridge) Run(ctx context.Context) {
	if !b.enabled {
		return
	}

	unsub, events := b.ctrl.Subscribe()
	defer unsub()

	// With connect retry the token only completes once connected
	b.client.Connect()
	defer b.client.Disconnect(250)

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			b.publishEvent(e)
		}
	}
}

// StateTopic carries the retained JSON state.
func (b *MQTTBridge) StateTopic() string {
	return path.Join(b.topic, "state")
}

func (b *MQTTBridge) setTopic() string {
	return path.Join(b.topic, "set", "+")
}

func (b *MQTTBridge) publishEvent(e controller.Event) {
	if !b.client.IsConnected() {
		return
	}

	payload, err := json.Marshal(e)
	if err != nil {
		mlog.Err(err).Msg("Encoding event")
		return
	}
	b.client.Publish(b.StateTopic(), 0, true, payload)
}

func (b *MQTTBridge) handleConnect(client paho.Client) {
	mlog.Info().Msg("MQTT connection established")

	if token := client.Subscribe(b.setTopic(), 0, b.handleSet); token.Wait() && token.Error() != nil {
		mlog.Err(token.Error()).Str("topic", b.setTopic()).Msg("Subscribe failed")
	}

	b.publishEvent(controller.Event{
		Snapshot: b.ctrl.State(),
		Source:   "state",
		Time:     time.Now(),
	})
}

func (b *MQTTBridge) handleConnectionLost(client paho.Client, err error) {
	mlog.Warn().Err(err).Msg("MQTT connection lost")
}

func (b *MQTTBridge) handleSet(client paho.Client, msg paho.Message) {
	if err := b.HandleSet(msg.Topic(), msg.Payload()); err != nil {
		mlog.Err(err).Str("topic", msg.Topic()).Msg("MQTT attribute write failed")
		return
	}
	mlog.Debug().Str("topic", msg.Topic()).Msg("MQTT attribute written")
}

// HandleSet writes payload to the attribute named by a <topic>/set/<attr>
// topic.
func (b *MQTTBridge) HandleSet(topic string, payload []byte) error {
	attr, ok := strings.CutPrefix(topic, path.Join(b.topic, "set")+"/")
	if !ok || attr == "" || strings.Contains(attr, "/") {
		return fmt.Errorf("%w: %q", ErrUnexpectedTopic, topic)
	}
	return b.ctrl.Set(attr, string(payload))
}
