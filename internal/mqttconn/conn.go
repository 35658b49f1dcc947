// Package mqttconn opens the broker connection shared by the MQTT sample
// source and the result publisher.
package mqttconn

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/stepcount/internal/monitoring"
)

// Options configures a broker connection.
type Options struct {
	Broker   string // e.g. tcp://localhost:1883
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
}

// Publisher is the part of mqtt.Client the result publisher needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Subscriber is the part of mqtt.Client the sample source needs.
type Subscriber interface {
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Unsubscribe(topics ...string) mqtt.Token
}

// ErrTimeout is returned when a broker operation does not complete in time.
var ErrTimeout = errors.New("mqtt: operation timed out")

// Connect dials the broker with auto-reconnect enabled and waits for the
// first connection.
func Connect(o Options) (mqtt.Client, error) {
	if o.Broker == "" {
		return nil, errors.New("mqtt: broker URL required")
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
		opts.SetPassword(o.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(o.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		monitoring.Logf("[mqtt] connection to %s lost: %v (will auto-reconnect)", o.Broker, err)
	}
	opts.OnReconnecting = func(mqtt.Client, *mqtt.ClientOptions) {
		monitoring.Logf("[mqtt] reconnecting to %s", o.Broker)
	}

	client := mqtt.NewClient(opts)
	monitoring.Logf("[mqtt] connecting to %s as %s", o.Broker, o.ClientID)
	if err := Wait(client.Connect(), o.Timeout); err != nil {
		return nil, fmt.Errorf("mqtt connect: %w", err)
	}
	return client, nil
}

// Wait blocks until tok completes or timeout elapses.
func Wait(tok mqtt.Token, timeout time.Duration) error {
	if !tok.WaitTimeout(timeout) {
		return ErrTimeout
	}
	return tok.Error()
}
