package status

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTSink publishes each Snapshot as a retained JSON message. Publish
// failures are logged and otherwise ignored; status reporting must never
// affect rendering.
type MQTTSink struct {
	client mqtt.Client
	topic  string
	qos    byte
	log    *zap.SugaredLogger
}

// MQTTConfig configures a broker connection for status publishing.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
}

// NewMQTTSink connects to cfg.Broker and returns a ready-to-use sink. The
// connection uses a short keep-alive since status messages are periodic
// and infrequent.
func NewMQTTSink(cfg MQTTConfig, log *zap.SugaredLogger) (*MQTTSink, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(5 * time.Second) {
		return nil, fmt.Errorf("status: mqtt connect to %s timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("status: mqtt connect to %s: %w", cfg.Broker, err)
	}

	qos := cfg.QoS
	if qos > 2 {
		qos = 2
	}

	return &MQTTSink{client: client, topic: cfg.Topic, qos: qos, log: log}, nil
}

func (m *MQTTSink) Publish(snap Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		m.log.Warnw("status: failed to marshal snapshot for mqtt", "error", err)
		return
	}
	token := m.client.Publish(m.topic, m.qos, true, payload)
	go func() {
		if token.WaitTimeout(2*time.Second) && token.Error() != nil {
			m.log.Warnw("status: mqtt publish failed", "error", token.Error())
		}
	}()
}

// Close disconnects from the broker.
func (m *MQTTSink) Close() {
	m.client.Disconnect(250)
}
