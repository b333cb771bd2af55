// Package subscription implements the live snapshot hub. Dashboard views
// subscribe to a learner's enrollment, stats, badge, or celebration stream
// and receive full snapshots pushed on every relevant domain event. Streams
// deliver whole snapshots rather than deltas, so a dropped or redelivered
// message never desynchronizes a client.
package subscription

import (
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// Kind labels what a message carries.
type Kind string

const (
	KindEnrollment  Kind = "enrollment"
	KindStats       Kind = "stats"
	KindBadges      Kind = "badges"
	KindCelebration Kind = "celebration"
)

// Message is one pushed snapshot.
type Message struct {
	// Kind is the snapshot type.
	Kind Kind `json:"kind"`

	// UserID is the learner the snapshot belongs to.
	UserID string `json:"user_id"`

	// CampaignID scopes enrollment snapshots; empty otherwise.
	CampaignID string `json:"campaign_id,omitempty"`

	// Payload is the snapshot body, serialized as-is to subscribers.
	Payload interface{} `json:"payload"`

	// SentAt is when the hub accepted the message.
	SentAt time.Time `json:"sent_at"`
}

// subscriberBuffer is the per-subscriber channel depth. A full buffer drops
// the oldest snapshot; the newest one always lands.
const subscriberBuffer = 8

// ══════════════════════════════════════════════════════════════════════════════
// HUB
// ══════════════════════════════════════════════════════════════════════════════

// Hub fans snapshots out to per-topic subscribers. The latest snapshot per
// topic is retained and replayed on (re)subscribe, so a reconnecting view
// renders immediately instead of waiting for the next event.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	closed bool
}

type topic struct {
	subscribers map[chan Message]struct{}
	latest      *Message
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[string]*topic)}
}

// Topic keys. Enrollment streams are scoped per campaign; the rest per user.
func enrollmentTopic(userID, campaignID string) string {
	return "enrollment:" + userID + ":" + campaignID
}

func statsTopic(userID string) string {
	return "stats:" + userID
}

func badgesTopic(userID string) string {
	return "badges:" + userID
}

func celebrationTopic(userID string) string {
	return "celebration:" + userID
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBSCRIBE
// ══════════════════════════════════════════════════════════════════════════════

// SubscribeEnrollment streams enrollment snapshots for one campaign.
// The caller must invoke cancel to release the subscription.
func (h *Hub) SubscribeEnrollment(userID, campaignID string) (<-chan Message, func()) {
	return h.subscribe(enrollmentTopic(userID, campaignID))
}

// SubscribeUserStats streams the learner's derived stats snapshots.
func (h *Hub) SubscribeUserStats(userID string) (<-chan Message, func()) {
	return h.subscribe(statsTopic(userID))
}

// SubscribeBadges streams the learner's badge collection snapshots.
func (h *Hub) SubscribeBadges(userID string) (<-chan Message, func()) {
	return h.subscribe(badgesTopic(userID))
}

// SubscribeCelebrations streams celebration prompts. Unlike the snapshot
// streams there is no replay: celebrations are show-once and the delivery
// layer consults the ledger before surfacing them.
func (h *Hub) SubscribeCelebrations(userID string) (<-chan Message, func()) {
	return h.subscribeNoReplay(celebrationTopic(userID))
}

func (h *Hub) subscribe(key string) (<-chan Message, func()) {
	ch, cancel, latest := h.register(key)
	if latest != nil {
		ch <- *latest
	}
	return ch, cancel
}

func (h *Hub) subscribeNoReplay(key string) (<-chan Message, func()) {
	ch, cancel, _ := h.register(key)
	return ch, cancel
}

func (h *Hub) register(key string) (chan Message, func(), *Message) {
	ch := make(chan Message, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}, nil
	}

	t, ok := h.topics[key]
	if !ok {
		t = &topic{subscribers: make(map[chan Message]struct{})}
		h.topics[key] = t
	}
	t.subscribers[ch] = struct{}{}
	latest := t.latest
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()

		t, ok := h.topics[key]
		if !ok {
			return
		}
		if _, subscribed := t.subscribers[ch]; !subscribed {
			return
		}
		delete(t.subscribers, ch)
		close(ch)
		if len(t.subscribers) == 0 && t.latest == nil {
			delete(h.topics, key)
		}
	}

	return ch, cancel, latest
}

// ══════════════════════════════════════════════════════════════════════════════
// PUBLISH
// ══════════════════════════════════════════════════════════════════════════════

// PublishEnrollment pushes an enrollment snapshot.
func (h *Hub) PublishEnrollment(userID, campaignID string, payload interface{}) {
	h.publish(enrollmentTopic(userID, campaignID), Message{
		Kind:       KindEnrollment,
		UserID:     userID,
		CampaignID: campaignID,
		Payload:    payload,
		SentAt:     time.Now().UTC(),
	}, true)
}

// PublishUserStats pushes a stats snapshot.
func (h *Hub) PublishUserStats(userID string, payload interface{}) {
	h.publish(statsTopic(userID), Message{
		Kind:    KindStats,
		UserID:  userID,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}, true)
}

// PublishBadges pushes a badge collection snapshot.
func (h *Hub) PublishBadges(userID string, payload interface{}) {
	h.publish(badgesTopic(userID), Message{
		Kind:    KindBadges,
		UserID:  userID,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}, true)
}

// PublishCelebration pushes a celebration prompt. Not retained.
func (h *Hub) PublishCelebration(userID string, payload interface{}) {
	h.publish(celebrationTopic(userID), Message{
		Kind:    KindCelebration,
		UserID:  userID,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	}, false)
}

func (h *Hub) publish(key string, msg Message, retain bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	t, ok := h.topics[key]
	if !ok {
		if !retain {
			return
		}
		t = &topic{subscribers: make(map[chan Message]struct{})}
		h.topics[key] = t
	}
	if retain {
		t.latest = &msg
	}

	for ch := range t.subscribers {
		select {
		case ch <- msg:
		default:
			// Slow consumer: drop the oldest buffered snapshot to make
			// room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// SubscriberCount reports active subscriptions across all topics.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, t := range h.topics {
		count += len(t.subscribers)
	}
	return count
}

// Close closes every subscriber channel and rejects further publishes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true

	for _, t := range h.topics {
		for ch := range t.subscribers {
			close(ch)
		}
	}
	h.topics = make(map[string]*topic)
}
