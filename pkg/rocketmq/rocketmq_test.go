package rocketmq

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PublishDeliversToSubscribers(t *testing.T) {
	l := NewLocal()
	var got []string
	require.NoError(t, l.Subscribe("T", func(_ context.Context, body []byte) error {
		got = append(got, string(body))
		return nil
	}))

	require.NoError(t, l.Publish(context.Background(), "T", "k", []byte("hello")))
	require.NoError(t, l.Publish(context.Background(), "OTHER", "k", []byte("ignored")))

	assert.Equal(t, []string{"hello"}, got)
}

func TestLocal_PublishReturnsHandlerError(t *testing.T) {
	l := NewLocal()
	boom := errors.New("boom")
	require.NoError(t, l.Subscribe("T", func(context.Context, []byte) error { return boom }))

	err := l.Publish(context.Background(), "T", "", nil)
	assert.ErrorIs(t, err, boom)
}
