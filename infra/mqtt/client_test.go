package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farreladriann/slc-backend/core/model"
	coremqtt "github.com/farreladriann/slc-backend/core/mqtt"
)

func TestPublishCommand_Payload(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", QoS: map[string]byte{"command": 2}})
	require.NoError(t, err)

	require.NoError(t, cli.PublishCommand(context.Background(), model.Command{TerminalID: "terminal_3", State: model.StatusOn}))
	require.NoError(t, cli.PublishCommand(context.Background(), model.Command{TerminalID: "kitchen", State: model.StatusOff}))
	require.Len(t, mc.published, 2)
	assert.Equal(t, DefaultDownstreamTopic, mc.published[0].topic)
	assert.Equal(t, byte(2), mc.published[0].qos)

	var first, second CommandPayload
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &first))
	require.NoError(t, json.Unmarshal(mc.published[1].payload, &second))
	assert.Equal(t, 3, first.TerminalID)
	assert.Equal(t, 1, first.Relay)
	assert.NotEmpty(t, first.CommandID)
	assert.Equal(t, 0, second.TerminalID)
	assert.Equal(t, 0, second.Relay)
	assert.NotEqual(t, first.CommandID, second.CommandID)
	assert.Less(t, first.ID, 1000)
	assert.Equal(t, (first.ID+1)%1000, second.ID)
}

func TestPublishCommand_NotConnected(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{})
	require.NoError(t, err)
	cli.Disconnect()
	err = cli.PublishCommand(context.Background(), model.Command{TerminalID: "terminal_1", State: model.StatusOn})
	assert.ErrorIs(t, err, coremqtt.ErrNotConnected)
	assert.Empty(t, mc.published)
}

func TestPublishCommand_Timeout(t *testing.T) {
	mc := &mockClient{hang: true}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 3})
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = cli.PublishCommand(ctx, model.Command{TerminalID: "terminal_1", State: model.StatusOn})
	assert.ErrorIs(t, err, coremqtt.ErrPublishTimeout)
	assert.Len(t, mc.published, 1, "timeouts are not retried")
}

func TestPublishCommand_Retry(t *testing.T) {
	mc := &mockClient{publishErrs: []error{errors.New("net fail"), nil}}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{MaxRetries: 1, BackoffMS: 1})
	require.NoError(t, err)
	require.NoError(t, cli.PublishCommand(context.Background(), model.Command{TerminalID: "terminal_1", State: model.StatusOn}))
	assert.Len(t, mc.published, 2)
}

func TestSubscribe_RestoredOnReconnect(t *testing.T) {
	mc := &mockClient{}
	useMock(t, mc)
	cli, err := NewPahoClient(Config{})
	require.NoError(t, err)

	var got []string
	require.NoError(t, cli.Subscribe(DefaultUpstreamTopic, 1, func(topic string, payload []byte) {
		got = append(got, topic+" "+string(payload))
	}))
	mc.deliver(DefaultUpstreamTopic, []byte(`{}`))
	assert.Equal(t, []string{DefaultUpstreamTopic + " {}"}, got)

	mc.opts.OnConnect(mc)
	require.Len(t, mc.subscribed, 2)
	assert.Equal(t, byte(1), mc.subscribed[1].qos)
}
