// Package publish forwards window results to an MQTT broker.
package publish

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/banshee-data/stepcount/internal/monitoring"
	"github.com/banshee-data/stepcount/internal/mqttconn"
	"github.com/banshee-data/stepcount/internal/stepcount"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "stepcount"

// MQTTPublisher is a stepcount.Sink. Each window is published as JSON on
// <prefix>/window and the running total, retained, on <prefix>/steps.
type MQTTPublisher struct {
	client  mqttconn.Publisher
	prefix  string
	qos     byte
	timeout time.Duration
}

// NewMQTTPublisher publishes under prefix. An empty prefix uses
// DefaultPrefix.
func NewMQTTPublisher(client mqttconn.Publisher, prefix string, qos byte) *MQTTPublisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos, timeout: 2 * time.Second}
}

// WindowTopic is where per-window results go.
func (p *MQTTPublisher) WindowTopic() string { return p.prefix + "/window" }

// StepsTopic carries the retained cumulative count.
func (p *MQTTPublisher) StepsTopic() string { return p.prefix + "/steps" }

// HandleWindow publishes r. Broker failures are logged; counting carries on.
func (p *MQTTPublisher) HandleWindow(r stepcount.WindowResult) {
	payload, err := json.Marshal(r)
	if err != nil {
		monitoring.Logf("[publish] marshal window %d: %v", r.Index, err)
		return
	}
	if err := mqttconn.Wait(p.client.Publish(p.WindowTopic(), p.qos, false, payload), p.timeout); err != nil {
		monitoring.Logf("[publish] %s: %v", p.WindowTopic(), err)
	}

	total := strconv.FormatFloat(r.Cumulative, 'f', -1, 64)
	if err := mqttconn.Wait(p.client.Publish(p.StepsTopic(), p.qos, true, total), p.timeout); err != nil {
		monitoring.Logf("[publish] %s: %v", p.StepsTopic(), err)
	}
}

var _ stepcount.Sink = (*MQTTPublisher)(nil)
