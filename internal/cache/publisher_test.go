package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherBroadcastsToAllSubscribers(t *testing.T) {
	pub := newPublisher()
	entry := NewReady(readyValue("https://example.com", time.Hour))

	const n = 8
	var wg sync.WaitGroup
	for range n {
		sub := pub.Subscribe()
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, ok, err := sub.Wait(context.Background())
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, entry.Embed.URL, got.Embed.URL)
		}()
	}

	pub.Publish(entry)
	wg.Wait()
}

func TestPublisherOnlyFirstPublishWins(t *testing.T) {
	pub := newPublisher()

	first := NewReady(readyValue("https://first.example", time.Hour))
	second := NewReady(readyValue("https://second.example", time.Hour))

	pub.Publish(first)
	pub.Publish(second)
	pub.Close()

	got, ok, err := pub.Subscribe().Wait(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://first.example", got.Embed.URL)
}

func TestPublisherCloseWithoutValue(t *testing.T) {
	pub := newPublisher()
	assert.False(t, pub.IsClosed())

	pub.Close()
	assert.True(t, pub.IsClosed())

	_, ok, err := pub.Subscribe().Wait(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLateSubscriberSeesValue(t *testing.T) {
	pub := newPublisher()
	pub.Publish(NewReady(readyValue("https://late.example", time.Hour)))

	got, ok, err := pub.Subscribe().Wait(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "https://late.example", got.Embed.URL)
}
