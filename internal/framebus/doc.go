// Package framebus distributes frames from the stream proxy to any number
// of independent subscribers.
//
// Every subscriber owns a bounded queue. Publish never blocks: when a
// queue is full its oldest frame is overwritten. Frames carry a
// monotonically increasing sequence number, so a subscriber that fell
// behind learns exactly how many frames it missed through a
// [*LaggedError] and then keeps receiving from the oldest frame still
// queued.
//
// Subscriptions only see frames published after they were created.
package framebus
