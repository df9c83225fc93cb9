package core

import (
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/metrics"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// pendingEntry is one buffered, BRB-delivered-but-not-yet-causally-ready
// RCO message.
type pendingEntry struct {
	origin  types.NodeID
	content string
	tag     types.VectorClock
}

// RCO implements the vector-clock causal delivery layer (§4.D) on top of a
// Bracha (BRB) engine.
type RCO struct {
	self types.NodeID
	n    int

	brb     *Bracha
	policy  Policy
	log     types.Logger
	metrics *metrics.Metrics

	vc            types.VectorClock
	pending       []pendingEntry
	rcoDelivered  map[types.Key]struct{}

	onDeliver func(origin types.NodeID, content string, vc types.VectorClock)
}

// NewRCO constructs an RCO engine for `self`, layered on brb. onDeliver is
// the application-facing rco_deliver upcall.
func NewRCO(cfg *types.Config, brb *Bracha, policy Policy, metrics *metrics.Metrics, onDeliver func(origin types.NodeID, content string, vc types.VectorClock)) *RCO {
	return &RCO{
		self:         cfg.NodeID,
		n:            cfg.N,
		brb:          brb,
		policy:       policy,
		log:          cfg.Logger,
		metrics:      metrics,
		vc:           types.NewVectorClock(cfg.N),
		rcoDelivered: make(map[types.Key]struct{}),
		onDeliver:    onDeliver,
	}
}

// Broadcast is the origin procedure rco_broadcast(content): deliver locally
// first, then BRB-broadcast a frame tagged with a snapshot of VC, then
// advance VC[self].
func (r *RCO) Broadcast(content string) {
	r.deliver(r.self, content)

	tag := r.policy.RCOTag(r.vc.Clone())
	frame := types.NewRCOFrame(r.self, content, tag)
	encoded, err := frame.Encode()
	if err != nil {
		r.log.Errorf("failed encoding rco frame: %v", err)
		return
	}
	r.brb.Broadcast(encoded)

	r.vc[r.self]++
}

// HandleBRBDeliver is the upcall registered on the Bracha engine: the RCO
// layer's brb_deliver handler. A payload that fails to parse as an RCO
// frame falls through to the base deliver action (a debug log line).
func (r *RCO) HandleBRBDeliver(origin types.NodeID, inner string) {
	frame, ok := types.DecodeRCOFrame(inner)
	if !ok {
		r.log.Debugf("rco: BRB-delivered payload from %d is not an rco frame, ignoring", origin)
		return
	}

	if frame.Origin == r.self {
		return
	}
	if _, done := r.rcoDelivered[frame.Key()]; done {
		return
	}
	if !r.policy.RCOShouldPend() {
		return
	}

	r.pending = append(r.pending, pendingEntry{
		origin:  frame.Origin,
		content: frame.Content,
		tag:     frame.VectorClock,
	})
	if r.metrics != nil {
		r.metrics.PendingSize.Set(float64(len(r.pending)))
	}
	r.deliverPending()
}

// deliverPending implements deliver-pending: repeatedly scan pending for an
// entry whose tag is dominated by VC, delivering it and advancing
// VC[origin] until no entry qualifies. One delivery may unlock further
// ones, so the scan restarts after each success (§4.D).
func (r *RCO) deliverPending() {
	for {
		idx := r.findDeliverable()
		if idx < 0 {
			return
		}
		entry := r.pending[idx]
		r.pending = append(r.pending[:idx], r.pending[idx+1:]...)

		r.deliver(entry.origin, entry.content)
		r.vc[entry.origin]++

		if r.metrics != nil {
			r.metrics.PendingSize.Set(float64(len(r.pending)))
		}
	}
}

func (r *RCO) findDeliverable() int {
	for i, entry := range r.pending {
		if r.vc.Dominates(entry.tag) {
			return i
		}
	}
	return -1
}

func (r *RCO) deliver(origin types.NodeID, content string) {
	r.rcoDelivered[types.NewKey(origin, content)] = struct{}{}
	r.log.Infof("[RCO-DELIVER] Node %d: Delivered message from sender %d: %q | VC=%v", r.self, origin, content, r.vc)
	if r.metrics != nil {
		r.metrics.RCODelivered.Inc()
	}
	if r.onDeliver != nil {
		r.onDeliver(origin, content, r.vc.Clone())
	}
}
