package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// Envelope is what a Transport hands upward: the authenticated sender and
// the RC frame it sent.
type Envelope struct {
	From  types.NodeID
	Frame types.DolevFrame
}

// Transport is the point-to-point shim §4.A describes: non-blocking submit
// to a single neighbor, an upcall channel for received frames, and a fixed,
// authenticated neighbor set. It never interprets broadcast semantics --
// every multicast is decomposed by the caller into individual Send calls.
type Transport interface {
	// Send submits a frame to a single neighbor, after waiting the
	// transport's per-packet random delay. Non-blocking: the delay and
	// hand-off run on their own goroutine.
	Send(to types.NodeID, frame types.DolevFrame)

	// Listen returns the channel of frames received from any neighbor.
	Listen() <-chan Envelope

	// Neighbors returns this node's fixed, symmetric neighbor set.
	Neighbors() []types.NodeID

	Close()
}

// Network is the shared in-memory switch connecting every InMemoryTransport
// in a test cluster or demo process. It plays the role the teacher's relt
// exchange plays, but models point-to-point delivery instead of group
// broadcast -- see DESIGN.md for why relt itself isn't used here.
type Network struct {
	inboxes map[types.NodeID]chan Envelope
}

// NewNetwork allocates a switch for the given set of node ids. Call
// NewInMemoryTransport once per node afterward to attach it.
func NewNetwork(nodes []types.NodeID) *Network {
	n := &Network{inboxes: make(map[types.NodeID]chan Envelope, len(nodes))}
	for _, id := range nodes {
		n.inboxes[id] = make(chan Envelope, 256)
	}
	return n
}

// deliver reports whether env reached the recipient's inbox; it gives up on
// an unknown recipient or after a bounded wait on a full inbox.
func (n *Network) deliver(to types.NodeID, env Envelope) bool {
	ch, ok := n.inboxes[to]
	if !ok {
		return false
	}
	select {
	case ch <- env:
		return true
	case <-time.After(250 * time.Millisecond):
		return false
	}
}

// InMemoryTransport is the Transport implementation used by the in-process
// test harness and the demonstration binary. Each Send runs on its own
// context-scoped goroutine that writes into the recipient's buffered inbox in
// the shared Network (one inbox per node, shared by all of its senders); the
// receiving Node's poll loop drains that inbox. relt's group-exchange
// primitive is replaced by this point-to-point delivery.
type InMemoryTransport struct {
	self      types.NodeID
	neighbors []types.NodeID
	network   *Network
	invoker   Invoker
	log       types.Logger
	minDelay  time.Duration
	maxDelay  time.Duration

	context context.Context
	finish  context.CancelFunc
}

// NewInMemoryTransport attaches a transport for `self` to the given network,
// with a fixed neighbor list and the delay bounds from Config.
func NewInMemoryTransport(self types.NodeID, neighbors []types.NodeID, network *Network, invoker Invoker, log types.Logger, minDelay, maxDelay time.Duration) *InMemoryTransport {
	ctx, done := context.WithCancel(context.Background())
	return &InMemoryTransport{
		self:      self,
		neighbors: neighbors,
		network:   network,
		invoker:   invoker,
		log:       log,
		minDelay:  minDelay,
		maxDelay:  maxDelay,
		context:   ctx,
		finish:    done,
	}
}

func (t *InMemoryTransport) randomDelay() time.Duration {
	if t.maxDelay <= t.minDelay {
		return t.minDelay
	}
	span := t.maxDelay - t.minDelay
	return t.minDelay + time.Duration(rand.Int63n(int64(span)))
}

// Send implements Transport. The random delay and the hand-off to the
// network are the only suspension points a single Send introduces; the
// caller's own handler is never blocked by them (SPEC_FULL.md §5).
func (t *InMemoryTransport) Send(to types.NodeID, frame types.DolevFrame) {
	t.invoker.Spawn(func() {
		select {
		case <-t.context.Done():
			return
		case <-time.After(t.randomDelay()):
		}
		select {
		case <-t.context.Done():
			return
		default:
		}
		if !t.network.deliver(to, Envelope{From: t.self, Frame: frame}) {
			t.log.Warnf("transport: dropped frame from %d to %d", t.self, to)
		}
	})
}

// Listen implements Transport by exposing this node's inbox directly; the
// Network writes into it under a bounded timeout rather than blocking
// forever on a slow consumer.
func (t *InMemoryTransport) Listen() <-chan Envelope {
	return t.network.inboxes[t.self]
}

func (t *InMemoryTransport) Neighbors() []types.NodeID {
	return t.neighbors
}

func (t *InMemoryTransport) Close() {
	t.finish()
}
