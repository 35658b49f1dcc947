package sensor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/motion"
	"github.com/banshee-data/stepcount/internal/mqttconn"
)

// inboxSize bounds the samples waiting between the paho callback and the
// consumer; when full the callback blocks, which is paho's backpressure.
const inboxSize = 64

// MQTTSource subscribes to a topic carrying one JSON sample per message:
// {"t": seconds, "x": ..., "y": ..., "z": ...}.
type MQTTSource struct {
	client  mqttconn.Subscriber
	topic   string
	qos     byte
	timeout time.Duration

	received atomic.Int64
	dropped  atomic.Int64
}

// NewMQTTSource reads samples from topic on client.
func NewMQTTSource(client mqttconn.Subscriber, topic string, qos byte) *MQTTSource {
	return &MQTTSource{client: client, topic: topic, qos: qos, timeout: 5 * time.Second}
}

// Received is the number of samples decoded.
func (s *MQTTSource) Received() int64 { return s.received.Load() }

// Dropped is the number of messages discarded as malformed or delivered
// after Stream stopped forwarding.
func (s *MQTTSource) Dropped() int64 { return s.dropped.Load() }

// Stream subscribes and forwards decoded samples until ctx is done. Paho
// delivers messages in order on one goroutine, so sample order is kept.
// Only Stream itself sends on out: the message handler hands samples over
// through an inbox, and once Stream has returned any late delivery is
// dropped, so callers may close out as soon as Stream returns.
func (s *MQTTSource) Stream(ctx context.Context, out chan<- motion.Sample) error {
	inbox := make(chan motion.Sample, inboxSize)
	done := make(chan struct{})
	defer close(done)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		var sample motion.Sample
		if err := json.Unmarshal(msg.Payload(), &sample); err != nil {
			s.dropped.Add(1)
			monitoring.Debugf("[sensor] %s: bad payload: %v", msg.Topic(), err)
			return
		}
		select {
		case <-done:
			s.dropped.Add(1)
			return
		default:
		}
		select {
		case inbox <- sample:
		case <-done:
			s.dropped.Add(1)
		}
	}

	if err := mqttconn.Wait(s.client.Subscribe(s.topic, s.qos, handler), s.timeout); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.topic, err)
	}
	monitoring.Logf("[sensor] subscribed to %s", s.topic)

	defer func() {
		if err := mqttconn.Wait(s.client.Unsubscribe(s.topic), s.timeout); err != nil {
			monitoring.Logf("[sensor] unsubscribe %s: %v", s.topic, err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sample := <-inbox:
			if err := send(ctx, out, sample); err != nil {
				s.dropped.Add(1)
				return err
			}
			s.received.Add(1)
		}
	}
}
