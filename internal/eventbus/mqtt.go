package eventbus

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/qitech/fieldbus-orchestrator/internal/logging"
)

// MQTTConfig configures an MQTTSink: broker address, credentials, and
// the site/device prefix of the per-machine, per-event topic tree.
type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	Site      string
	Device    string
}

// MQTTSink wraps a Bus and forwards every published Event to an MQTT
// broker on a topic derived from the machine identity and event name.
type MQTTSink struct {
	*Bus
	client mqtt.Client
	cfg    MQTTConfig
	log    *logging.Logger
	done   chan struct{}
}

// NewMQTTSink connects to cfg.BrokerURL (AutoReconnect, ConnectRetry,
// 10s connect timeout) and starts a background goroutine draining the
// underlying Bus and publishing at QoS 1, not retained.
func NewMQTTSink(cfg MQTTConfig, capacity int, log *logging.Logger) (*MQTTSink, error) {
	if log == nil {
		log = logging.New(logging.Config{Level: logging.LevelInfo})
	}
	log = log.With("eventbus")

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetOrderMatters(false)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	tok := client.Connect()
	if !tok.WaitTimeout(10*time.Second) || tok.Error() != nil {
		return nil, fmt.Errorf("eventbus: mqtt connect: %w", tok.Error())
	}

	sink := &MQTTSink{
		Bus:    NewBus(capacity),
		client: client,
		cfg:    cfg,
		log:    log,
		done:   make(chan struct{}),
	}
	go sink.drain()
	return sink, nil
}

// topic builds fieldbus/<site>/<device>/<vendor>-<machine>-<serial>/<name>.
func (s *MQTTSink) topic(ev Event) string {
	return fmt.Sprintf("fieldbus/%s/%s/%d-%d-%d/%s",
		s.cfg.Site, s.cfg.Device, ev.MachineVendor, ev.MachineMachine, ev.MachineSerial, ev.Name)
}

func (s *MQTTSink) drain() {
	for {
		select {
		case ev, ok := <-s.Bus.Events():
			if !ok {
				return
			}
			tok := s.client.Publish(s.topic(ev), 1, false, ev.Payload)
			go func() {
				if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
					s.log.Warn("publish %s failed: %v", ev.Name, tok.Error())
				}
			}()
		case <-s.done:
			return
		}
	}
}

// SubscribeCommands subscribes to every machine's command topic
// (fieldbus/<site>/<device>/<vendor>-<machine>-<serial>/cmd) and invokes
// handler with the addressed machine identity and raw payload for each
// message. handler is
// called on the paho client's own callback goroutine, so it must not
// block; the wiring in cmd/fieldbusd hands commands off to the cycle
// engine's inbox rather than acting on them directly.
func (s *MQTTSink) SubscribeCommands(handler func(vendor, machine, serial uint32, payload []byte)) error {
	cmdTopic := fmt.Sprintf("fieldbus/%s/%s/+/cmd", s.cfg.Site, s.cfg.Device)
	tok := s.client.Subscribe(cmdTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		vendor, machine, serial, ok := parseIdentityTopic(msg.Topic())
		if !ok {
			s.log.Warn("cmd: unparseable topic %q", msg.Topic())
			return
		}
		handler(vendor, machine, serial, msg.Payload())
	})
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		return fmt.Errorf("eventbus: mqtt subscribe %s: %w", cmdTopic, tok.Error())
	}
	return nil
}

// parseIdentityTopic extracts the vendor-machine-serial triple from the
// second-to-last segment of a fieldbus/<site>/<device>/<vendor>-<machine>-
// <serial>/<name> topic, the inverse of MQTTSink.topic.
func parseIdentityTopic(topic string) (vendor, machine, serial uint32, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return 0, 0, 0, false
	}
	idParts := strings.Split(parts[len(parts)-2], "-")
	if len(idParts) != 3 {
		return 0, 0, 0, false
	}
	v, err1 := strconv.ParseUint(idParts[0], 10, 32)
	m, err2 := strconv.ParseUint(idParts[1], 10, 32)
	se, err3 := strconv.ParseUint(idParts[2], 10, 32)
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, 0, 0, false
	}
	return uint32(v), uint32(m), uint32(se), true
}

// Close stops the drain loop and disconnects the MQTT client.
func (s *MQTTSink) Close() {
	close(s.done)
	s.client.Disconnect(250)
}
