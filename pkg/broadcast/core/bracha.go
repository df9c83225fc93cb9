package core

import (
	"strings"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/metrics"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// brachaRecord is the per-key BRB state of §3: the echo/ready sender sets
// and the three delivery-path booleans.
type brachaRecord struct {
	echos       map[types.NodeID]struct{}
	readys      map[types.NodeID]struct{}
	sentEcho    bool
	sentReady   bool
	delivered   bool
}

func newBrachaRecord() *brachaRecord {
	return &brachaRecord{
		echos:  make(map[types.NodeID]struct{}),
		readys: make(map[types.NodeID]struct{}),
	}
}

// Bracha implements Bracha's three-phase SEND/ECHO/READY broadcast (BRB,
// §4.C) layered on an RC engine, with the MBD.11 reduced-message-set,
// echo-amplification and single-hop-send optimizations. As with Dolev, every
// method assumes the owning Node's mutex is already held.
type Bracha struct {
	self types.NodeID
	n    int
	f    int

	rc      *Dolev
	policy  Policy
	log     types.Logger
	metrics *metrics.Metrics

	optEchoAmplification bool
	optSingleHopSend     bool
	optReducedMessages   bool

	neighbors []types.NodeID

	records map[types.Key]*brachaRecord

	onDeliver DeliverFunc
}

// NewBracha constructs a BRB engine for `self`. rc is the RC engine it is
// layered on; onDeliver is the upcall a layer above BRB (the RCO engine)
// registers for brb_deliver.
func NewBracha(cfg *types.Config, neighbors []types.NodeID, rc *Dolev, policy Policy, metrics *metrics.Metrics, onDeliver DeliverFunc) *Bracha {
	b := &Bracha{
		self:                 cfg.NodeID,
		n:                    cfg.N,
		f:                    cfg.F,
		rc:                   rc,
		policy:               policy,
		log:                  cfg.Logger,
		metrics:              metrics,
		optEchoAmplification: cfg.OptEchoAmplification,
		optSingleHopSend:     cfg.OptSingleHopSend,
		optReducedMessages:   cfg.OptReducedMessages,
		neighbors:            neighbors,
		records:              make(map[types.Key]*brachaRecord),
		onDeliver:            onDeliver,
	}
	policy.BRBOnStart(b)
	return b
}

func (b *Bracha) record(k types.Key) *brachaRecord {
	r, ok := b.records[k]
	if !ok {
		r = newBrachaRecord()
		b.records[k] = r
	}
	return r
}

// Broadcast is the origin procedure brb_broadcast(content).
func (b *Bracha) Broadcast(content string) {
	frame := types.NewBrachaFrame(b.self, content, types.BrachaSend)
	encoded, err := frame.Encode()
	if err != nil {
		b.log.Errorf("failed encoding bracha SEND frame: %v", err)
		return
	}

	targets := b.neighbors
	if custom := b.policy.BRBSendTargets(b.neighbors); custom != nil {
		targets = custom
	}

	if b.optSingleHopSend {
		b.sendSingleHop(frame, encoded, targets)
		return
	}
	// rc_broadcast's contract (§4.B) is unconditional and synchronous:
	// self-deliver, then fan out. BroadcastTo runs both steps instead of a
	// bare transport fan-out, so the origin's own SEND reaches its own
	// handleSend -- and therefore its own ECHO -- immediately, rather than
	// depending on an indirect round trip through relayed MD.2 announcements.
	b.rc.BroadcastTo(encoded, targets)
	if b.metrics != nil {
		b.metrics.BRBSent.Inc()
	}
}

// sendSingleHop implements the single-hop-SEND optimization: the origin
// sends SEND directly to each neighbor with an empty RC path, and
// short-circuits its own rc_deliver so it immediately emits its own ECHO,
// bypassing the RC layer entirely for the SEND phase.
func (b *Bracha) sendSingleHop(frame types.BrachaFrame, encoded string, targets []types.NodeID) {
	for _, peer := range targets {
		b.rc.transport.Send(peer, types.NewDolevFrame(b.self, encoded, nil))
	}
	if b.metrics != nil {
		b.metrics.BRBSent.Inc()
	}
	// Mark the origin's own RC record delivered before dispatching to BRB,
	// so a later empty-path announcement relayed back from one of the
	// origin's own neighbors (which processes the direct SEND above as an
	// ordinary RC packet) hits the MD.5 cutoff instead of satisfying the
	// disjoint-path check a second time and re-delivering at the RC layer.
	b.rc.shortCircuitDeliver(encoded)
}

// HandleRCDeliver is the upcall registered on the RC engine: it is the BRB
// layer's rc_deliver handler. A payload that fails to parse as a Bracha
// frame falls through to the base deliver action (a debug log line), per
// the Open Questions resolution in SPEC_FULL.md §9.
func (b *Bracha) HandleRCDeliver(s types.NodeID, inner string) {
	frame, ok := types.DecodeBrachaFrame(inner)
	if !ok {
		b.log.Debugf("bracha: RC-delivered payload is not a bracha frame, ignoring")
		return
	}

	b.policy.BRBOnReceive(b, frame)

	switch frame.Kind {
	case types.BrachaSend:
		b.handleSend(frame)
	case types.BrachaEcho:
		b.handleEcho(s, frame)
	case types.BrachaReady:
		b.handleReady(s, frame)
	default:
		b.log.Warnf("bracha: unknown frame kind %q", frame.Kind)
	}
}

func (b *Bracha) handleSend(frame types.BrachaFrame) {
	k := frame.Key()
	r := b.record(k)
	if !r.sentEcho && b.echoEligible(frame.Origin) {
		r.sentEcho = true
		b.sendTagged(frame.Origin, frame.Content, types.BrachaEcho)
	}
}

// handleEcho records s (the RC-delivery sender, i.e. the node that actually
// emitted this ECHO) in echos[(o,c)] -- not the BRB broadcast's origin o,
// which is constant across every ECHO for a given key and would otherwise
// collapse the quorum set to a single entry regardless of how many distinct
// nodes echoed.
func (b *Bracha) handleEcho(s types.NodeID, frame types.BrachaFrame) {
	k := frame.Key()
	r := b.record(k)
	r.echos[s] = struct{}{}
	if b.metrics != nil {
		b.metrics.EchoSetSize.Set(float64(len(r.echos)))
	}

	echoThreshold := b.echoThreshold()
	if len(r.echos) >= echoThreshold && !r.sentReady && b.readyEligible(frame.Origin) {
		r.sentReady = true
		b.sendTagged(frame.Origin, frame.Content, types.BrachaReady)
	}

	if b.optEchoAmplification && len(r.echos) >= b.f+1 && !r.sentEcho && b.echoEligible(frame.Origin) {
		r.sentEcho = true
		b.sendTagged(frame.Origin, frame.Content, types.BrachaEcho)
	}
}

// handleReady records s (the RC-delivery sender) in readys[(o,c)], for the
// same reason handleEcho records s rather than the broadcast's origin o.
func (b *Bracha) handleReady(s types.NodeID, frame types.BrachaFrame) {
	k := frame.Key()
	r := b.record(k)
	r.readys[s] = struct{}{}
	if b.metrics != nil {
		b.metrics.ReadySetSize.Set(float64(len(r.readys)))
	}

	if len(r.readys) >= b.f+1 && !r.sentReady && b.readyEligible(frame.Origin) {
		r.sentReady = true
		b.sendTagged(frame.Origin, frame.Content, types.BrachaReady)
	}

	if len(r.readys) >= b.deliveryThreshold() && !r.delivered {
		r.delivered = true
		b.deliver(frame.Origin, frame.Content)
	}
}

// sendTagged is "send ECHO"/"send READY" (§4.C): construct the tagged record
// and RC-broadcast it. Routing through rc.Broadcast (not a bare transport
// fan-out) is what makes the sender's own ECHO/READY self-deliver at its own
// RC layer immediately, exactly like any other rc_broadcast.
func (b *Bracha) sendTagged(origin types.NodeID, content string, kind types.BrachaKind) {
	frame := types.NewBrachaFrame(origin, content, kind)
	encoded, err := frame.Encode()
	if err != nil {
		b.log.Errorf("failed encoding bracha %s frame: %v", kind, err)
		return
	}
	b.rc.Broadcast(encoded)
	if b.metrics != nil {
		b.metrics.BRBSent.Inc()
	}
}

func (b *Bracha) deliver(origin types.NodeID, content string) {
	b.log.Infof("[BRB-DELIVER] Node %d: Delivered message from %d: '%s'", b.self, origin, content)
	if b.metrics != nil {
		b.metrics.BRBDelivered.Inc()
	}
	if b.onDeliver != nil {
		b.onDeliver(origin, content)
	}
}

// circularSuffix returns ((origin+1) mod N), ((origin+2) mod N), ... --
// the ordering MBD.11 relies on, preserved exactly per SPEC_FULL.md §9.
func (b *Bracha) circularSuffix(origin types.NodeID) []types.NodeID {
	out := make([]types.NodeID, b.n)
	for i := 0; i < b.n; i++ {
		out[i] = types.NodeID((int(origin) + 1 + i) % b.n)
	}
	return out
}

func (b *Bracha) echoThreshold() int {
	return (b.n + b.f + 1 + 1) / 2 // ceil((n+f+1)/2)
}

func (b *Bracha) deliveryThreshold() int {
	return 2*b.f + 1
}

func (b *Bracha) echoEligible(origin types.NodeID) bool {
	if !b.optReducedMessages {
		return true
	}
	prefixLen := b.echoThreshold() + b.f
	return b.inPrefix(origin, prefixLen)
}

func (b *Bracha) readyEligible(origin types.NodeID) bool {
	if !b.optReducedMessages {
		return true
	}
	return b.inPrefix(origin, 3*b.f+1)
}

func (b *Bracha) inPrefix(origin types.NodeID, prefixLen int) bool {
	if prefixLen >= b.n {
		return true
	}
	for _, id := range b.circularSuffix(origin)[:prefixLen] {
		if id == b.self {
			return true
		}
	}
	return false
}

// attemptForgery implements collude's startup behavior: pick a random
// victim and RC-broadcast forged ECHO and READY records for a fabricated
// message from that victim.
func (b *Bracha) attemptForgery() {
	victim := b.rc.randomOtherNode()
	content := forgedContent(victim)
	b.log.Infof("[BYZANTINE-FORGERY] Node %d: forging bracha echo/ready from node %d", b.self, victim)
	b.sendTagged(victim, content, types.BrachaEcho)
	b.sendTagged(victim, content, types.BrachaReady)
}

// supportForgery implements collude's ongoing behavior: any content it
// recognizes as forged is echoed/readied immediately, bypassing thresholds.
func (b *Bracha) supportForgery(frame types.BrachaFrame) {
	if !strings.Contains(frame.Content, ForgedContentPrefix) {
		return
	}
	switch frame.Kind {
	case types.BrachaSend:
		b.sendTagged(frame.Origin, frame.Content, types.BrachaEcho)
	case types.BrachaEcho, types.BrachaReady:
		b.sendTagged(frame.Origin, frame.Content, types.BrachaReady)
	}
}
