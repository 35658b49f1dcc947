package mqttconn

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Published records one MockClient.Publish call.
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MockClient is an in-memory Publisher and Subscriber for tests and
// offline runs.
type MockClient struct {
	mu        sync.Mutex
	published []Published
	handlers  map[string]mqtt.MessageHandler
	// Err, when set, is returned by every token.
	Err error
	// UnsubscribeErr, when set, fails Unsubscribe and leaves the handlers
	// registered, as when the broker never acknowledges.
	UnsubscribeErr error
}

// NewMockClient returns an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	default:
		return &doneToken{err: fmt.Errorf("unsupported payload type %T", payload)}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, Published{Topic: topic, QoS: qos, Retained: retained, Payload: data})
	return &doneToken{err: m.Err}
}

func (m *MockClient) Subscribe(topic string, _ byte, callback mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err == nil {
		m.handlers[topic] = callback
	}
	return &doneToken{err: m.Err}
}

func (m *MockClient) Unsubscribe(topics ...string) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UnsubscribeErr != nil {
		return &doneToken{err: m.UnsubscribeErr}
	}
	for _, t := range topics {
		delete(m.handlers, t)
	}
	return &doneToken{}
}

// Deliver invokes the handler subscribed to topic, reporting whether one
// exists.
func (m *MockClient) Deliver(topic string, payload []byte) bool {
	m.mu.Lock()
	h, ok := m.handlers[topic]
	m.mu.Unlock()
	if !ok {
		return false
	}
	h(nil, &mockMessage{topic: topic, payload: payload})
	return true
}

// Subscribed reports whether a handler is registered for topic.
func (m *MockClient) Subscribed(topic string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.handlers[topic]
	return ok
}

// Published returns a copy of every recorded publish.
func (m *MockClient) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.published...)
}

type doneToken struct{ err error }

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Error() error                   { return t.err }

func (t *doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Duplicate() bool   { return false }
func (m *mockMessage) Qos() byte         { return 0 }
func (m *mockMessage) Retained() bool    { return false }
func (m *mockMessage) Topic() string     { return m.topic }
func (m *mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte   { return m.payload }
func (m *mockMessage) Ack()              {}
