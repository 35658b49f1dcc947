package mqttconn

import (
	"errors"
	"testing"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_RequiresBroker(t *testing.T) {
	_, err := Connect(Options{ClientID: "x"})
	assert.Error(t, err)
}

func TestMockClient_PublishAndDeliver(t *testing.T) {
	m := NewMockClient()
	var _ Publisher = m
	var _ Subscriber = m

	require.NoError(t, Wait(m.Publish("steps/window", 1, false, []byte(`{"a":1}`)), 0))
	require.NoError(t, Wait(m.Publish("steps/total", 1, true, "3.5"), 0))
	assert.Error(t, Wait(m.Publish("steps/bad", 0, false, 42), 0))

	got := m.Published()
	require.Len(t, got, 2)
	assert.Equal(t, "steps/total", got[1].Topic)
	assert.True(t, got[1].Retained)
	assert.Equal(t, "3.5", string(got[1].Payload))

	var received []string
	require.NoError(t, Wait(m.Subscribe("imu/raw", 0, func(_ mqtt.Client, msg mqtt.Message) {
		received = append(received, string(msg.Payload()))
	}), 0))
	assert.True(t, m.Deliver("imu/raw", []byte("hello")))
	assert.False(t, m.Deliver("imu/other", []byte("ignored")))
	assert.Equal(t, []string{"hello"}, received)

	require.NoError(t, Wait(m.Unsubscribe("imu/raw"), 0))
	assert.False(t, m.Subscribed("imu/raw"))
}

func TestMockClient_Err(t *testing.T) {
	m := NewMockClient()
	m.Err = errors.New("broker down")
	assert.EqualError(t, Wait(m.Publish("t", 0, false, "x"), 0), "broker down")
	assert.Error(t, Wait(m.Subscribe("t", 0, nil), 0))
	assert.False(t, m.Subscribed("t"))
}
