package subscription

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToMatchingSubscriber(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.SubscribeEnrollment("user-1", "camp-go")
	defer cancel()

	hub.PublishEnrollment("user-1", "camp-go", "snapshot-a")
	hub.PublishEnrollment("user-1", "camp-rust", "snapshot-b")
	hub.PublishEnrollment("user-2", "camp-go", "snapshot-c")

	msg := <-ch
	assert.Equal(t, KindEnrollment, msg.Kind)
	assert.Equal(t, "snapshot-a", msg.Payload)
	assert.Empty(t, ch, "other users and campaigns are filtered out")
}

func TestHub_ReplaysLatestSnapshotOnSubscribe(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	hub.PublishUserStats("user-1", "stale")
	hub.PublishUserStats("user-1", "fresh")

	ch, cancel := hub.SubscribeUserStats("user-1")
	defer cancel()

	msg := <-ch
	assert.Equal(t, "fresh", msg.Payload)
}

func TestHub_CelebrationsAreNotReplayed(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	hub.PublishCelebration("user-1", Celebration{Kind: "level_up", Key: "level:5"})

	ch, cancel := hub.SubscribeCelebrations("user-1")
	defer cancel()

	assert.Empty(t, ch, "a celebration published before subscribing is gone")

	hub.PublishCelebration("user-1", Celebration{Kind: "level_up", Key: "level:6"})
	msg := <-ch
	assert.Equal(t, KindCelebration, msg.Kind)
}

func TestHub_SlowConsumerDropsOldestNotNewest(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.SubscribeBadges("user-1")
	defer cancel()

	// Overflow the buffer without reading.
	for i := 0; i < subscriberBuffer+3; i++ {
		hub.PublishBadges("user-1", i)
	}

	var last interface{}
	for len(ch) > 0 {
		last = (<-ch).Payload
	}
	assert.Equal(t, subscriberBuffer+2, last, "the newest snapshot survives the overflow")
}

func TestHub_CancelStopsDeliveryAndClosesChannel(t *testing.T) {
	hub := NewHub()
	defer hub.Close()

	ch, cancel := hub.SubscribeUserStats("user-1")
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount())

	hub.PublishUserStats("user-1", "after-cancel")
}

func TestHub_CloseClosesAllSubscribers(t *testing.T) {
	hub := NewHub()

	ch1, _ := hub.SubscribeUserStats("user-1")
	ch2, _ := hub.SubscribeBadges("user-2")

	hub.Close()

	_, open := <-ch1
	assert.False(t, open)
	_, open = <-ch2
	assert.False(t, open)

	ch3, cancel := hub.SubscribeUserStats("user-3")
	defer cancel()
	_, open = <-ch3
	require.False(t, open, "subscribing after close yields a closed channel")
}
