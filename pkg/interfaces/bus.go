package interfaces

// Subscription is one live membership of a broadcast group. Payloads arrive
// on C in publish order; the channel is closed on Unsubscribe or bus close.
type Subscription interface {
	// C returns the delivery channel for this subscriber.
	C() <-chan []byte

	// Group returns the group this subscription belongs to.
	Group() string
}

// Bus is the broadcast layer every fan-out in the system goes through,
// keyed by opaque group names (dashboard_user_<id>, meeting_<room>,
// thread_<id>). Backed by an in-memory registry for single-instance
// deployments or Redis Pub/Sub when scaled horizontally.
//
// Publish is best-effort: delivery to each subscriber is independent and
// never blocks the publisher. A subscriber that cannot keep up loses
// messages rather than stalling the group.
type Bus interface {
	Subscribe(group string) (Subscription, error)
	Unsubscribe(sub Subscription)
	Publish(group string, payload []byte) error
	Close() error
}
