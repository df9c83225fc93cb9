package core

import (
	"math/rand"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/metrics"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// dolevRecord is the per-key RC state of §3: whether self has delivered,
// the witnessed paths, which neighbors are known to have already delivered,
// which neighbors sent an empty-path announcement, and whether self has
// already forwarded its own empty-path announcement.
type dolevRecord struct {
	delivered          bool
	paths              []types.Path
	neighborsDelivered map[types.NodeID]struct{}
	emptyPathSenders   map[types.NodeID]struct{}
	emptyPathForwarded bool
}

func newDolevRecord() *dolevRecord {
	return &dolevRecord{
		neighborsDelivered: make(map[types.NodeID]struct{}),
		emptyPathSenders:   make(map[types.NodeID]struct{}),
	}
}

// DeliverFunc is the upcall a layer above RC registers to receive
// rc_deliver(origin, content) notifications.
type DeliverFunc func(origin types.NodeID, content string)

// Dolev implements Dolev's unforgeable authenticated broadcast (RC, §4.B)
// with optimizations MD.1-MD.5. Every exported method assumes the caller
// already holds the owning Node's single mutex -- see SPEC_FULL.md §5.
type Dolev struct {
	self      types.NodeID
	neighbors []types.NodeID
	allNodes  []types.NodeID
	f         int

	transport Transport
	policy    Policy
	log       types.Logger
	metrics   *metrics.Metrics

	records map[types.Key]*dolevRecord

	onDeliver DeliverFunc
}

// NewDolev constructs an RC engine for `self`, wired to the given transport
// and upcalling `onDeliver` for every rc_deliver.
func NewDolev(cfg *types.Config, neighbors []types.NodeID, transport Transport, policy Policy, metrics *metrics.Metrics, onDeliver DeliverFunc) *Dolev {
	allNodes := make([]types.NodeID, cfg.N)
	for i := range allNodes {
		allNodes[i] = types.NodeID(i)
	}
	return &Dolev{
		self:      cfg.NodeID,
		neighbors: neighbors,
		allNodes:  allNodes,
		f:         cfg.F,
		transport: transport,
		policy:    policy,
		log:       cfg.Logger,
		metrics:   metrics,
		records:   make(map[types.Key]*dolevRecord),
		onDeliver: onDeliver,
	}
}

func (d *Dolev) record(k types.Key) *dolevRecord {
	r, ok := d.records[k]
	if !ok {
		r = newDolevRecord()
		d.records[k] = r
	}
	return r
}

// Broadcast is the origin procedure rc_broadcast(content): deliver locally,
// then send an empty-path announcement to every neighbor.
func (d *Dolev) Broadcast(content string) {
	d.BroadcastTo(content, d.neighbors)
}

// BroadcastTo is rc_broadcast(content) restricted to a caller-chosen subset
// of neighbors for the outbound fan-out, while still unconditionally
// self-delivering first. This is what BRB's limited_broadcast Byzantine
// behavior (§4.E) needs: a narrowed SEND fan-out that still honors "deliver
// locally" being synchronous and unconditional, never skipped alongside the
// restricted send.
func (d *Dolev) BroadcastTo(content string, targets []types.NodeID) {
	k := types.NewKey(d.self, content)
	r := d.record(k)
	if !r.delivered {
		r.delivered = true
		d.deliver(d.self, content)
	}
	d.sendToPeers(types.NewDolevFrame(d.self, content, nil), targets)
}

// shortCircuitDeliver implements the local half of BRB's single-hop-SEND
// optimization: the origin marks its own RC record delivered -- and the
// empty-path announcement already effectively forwarded, since the direct
// per-neighbor SEND sent by the caller is itself shaped exactly like an MD.2
// announcement -- without a network round trip. This is what makes a later
// relayed empty-path announcement from the origin's own neighbors (an
// artifact of them processing that direct SEND as an ordinary RC packet) hit
// the MD.5 cutoff instead of re-triggering rc_deliver a second time.
func (d *Dolev) shortCircuitDeliver(content string) {
	k := types.NewKey(d.self, content)
	r := d.record(k)
	if r.delivered {
		return
	}
	r.delivered = true
	r.emptyPathForwarded = true
	r.paths = nil
	d.deliver(d.self, content)
}

func (d *Dolev) deliver(origin types.NodeID, content string) {
	d.log.Infof("[RC-DELIVER] Node %d: Delivered message from %d: '%s'", d.self, origin, content)
	if d.metrics != nil {
		d.metrics.RCDelivered.Inc()
	}
	if d.onDeliver != nil {
		d.onDeliver(origin, content)
	}
}

func (d *Dolev) sendToPeers(frame types.DolevFrame, peers []types.NodeID) {
	for _, p := range peers {
		d.transport.Send(p, frame)
	}
	if d.metrics != nil && len(peers) > 0 {
		d.metrics.RCForwarded.Add(float64(len(peers)))
	}
}

// HandleReceive processes one RC packet received from neighbor `s`,
// implementing the MD.1-MD.5 steps of §4.B in order.
func (d *Dolev) HandleReceive(s types.NodeID, frame types.DolevFrame) {
	k := frame.Key()
	r := d.record(k)

	if !d.policy.RCShouldRelay() {
		return
	}
	d.policy.RCOnReceive(d)

	// MD.5 cutoff.
	if r.delivered && r.emptyPathForwarded {
		return
	}

	isEmptyPath := len(frame.Path) == 0
	newPath := frame.Path.Append(s)

	if isEmptyPath {
		r.emptyPathSenders[s] = struct{}{}
		r.neighborsDelivered[s] = struct{}{}
	}

	// MD.1 direct-from-source.
	if isEmptyPath && s == frame.Origin && !r.delivered {
		r.delivered = true
		d.deliver(frame.Origin, frame.Content)
		d.relayEmptyPath(k, frame.Origin, frame.Content)
		return
	}

	// MD.4 contamination filter: the path excluding the trailing hop
	// (i.e. the path as received, before appending s) must not transit a
	// node already known to have sent an empty-path announcement.
	if !isEmptyPath {
		for _, n := range frame.Path {
			if _, bad := r.emptyPathSenders[n]; bad {
				return
			}
		}
	}

	r.paths = append(r.paths, newPath)

	if !r.delivered && d.hasFPlusOneDisjointPaths(r) {
		r.delivered = true
		d.deliver(frame.Origin, frame.Content)
		d.relayEmptyPath(k, frame.Origin, frame.Content)
		return
	}

	if !r.delivered {
		d.forward(frame, newPath, s, r)
	}
}

// forward implements MD.3: relay to every neighbor not already on the path,
// not the immediate sender, and not known to have already delivered.
func (d *Dolev) forward(frame types.DolevFrame, newPath types.Path, s types.NodeID, r *dolevRecord) {
	onPath := make(map[types.NodeID]struct{}, len(frame.Path))
	for _, n := range frame.Path {
		onPath[n] = struct{}{}
	}

	var targets []types.NodeID
	for _, n := range d.neighbors {
		if n == s {
			continue
		}
		if _, on := onPath[n]; on {
			continue
		}
		if _, delivered := r.neighborsDelivered[n]; delivered {
			continue
		}
		targets = append(targets, n)
	}
	d.sendToPeers(types.NewDolevFrame(frame.Origin, frame.Content, newPath), targets)
}

// relayEmptyPath implements MD.2: announce delivery to every neighbor once,
// then discard the now-unneeded path set (MD.5 makes this safe).
func (d *Dolev) relayEmptyPath(k types.Key, origin types.NodeID, content string) {
	r := d.record(k)
	if r.emptyPathForwarded {
		return
	}
	d.sendToPeers(types.NewDolevFrame(origin, content, nil), d.neighbors)
	r.emptyPathForwarded = true
	r.paths = nil
}

// hasFPlusOneDisjointPaths runs the greedy node-disjoint path test of §4.B:
// admit paths in order, skipping any whose intermediates intersect an
// already-admitted path's intermediates, stopping as soon as f+1 are
// admitted.
func (d *Dolev) hasFPlusOneDisjointPaths(r *dolevRecord) bool {
	need := d.f + 1
	if len(r.paths) < need {
		return false
	}

	var admittedIntermediates []map[types.NodeID]struct{}
	for _, p := range r.paths {
		candidate := p.Intermediates()
		disjoint := true
		for _, used := range admittedIntermediates {
			if intersects(candidate, used) {
				disjoint = false
				break
			}
		}
		if disjoint {
			admittedIntermediates = append(admittedIntermediates, candidate)
			if len(admittedIntermediates) >= need {
				return true
			}
		}
	}
	return false
}

func intersects(a, b map[types.NodeID]struct{}) bool {
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for n := range small {
		if _, ok := big[n]; ok {
			return true
		}
	}
	return false
}

// attemptForgery implements forge_sender: fabricate an announcement
// impersonating a random other node and send it to every neighbor with an
// empty path, shaped like an MD.2 empty-path announcement. The authenticated
// sender is this node, not the victim, so receivers never treat it as
// direct-from-source (MD.1).
func (d *Dolev) attemptForgery() {
	victim := d.randomOtherNode()
	frame := types.NewDolevFrame(victim, forgedContent(victim), nil)
	d.log.Infof("[BYZANTINE-FORGERY] Node %d: forging message from node %d", d.self, victim)
	d.sendToPeers(frame, d.neighbors)
}

func (d *Dolev) randomOtherNode() types.NodeID {
	candidates := make([]types.NodeID, 0, len(d.allNodes))
	for _, n := range d.allNodes {
		if n != d.self {
			candidates = append(candidates, n)
		}
	}
	if len(candidates) == 0 {
		return d.self
	}
	return candidates[rand.Intn(len(candidates))]
}
