package core

import (
	"fmt"
	"math/rand"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// Policy is the strategy-pattern seam for the named Byzantine behaviors of
// §4.E. Every method has a no-op default (see basePolicy) so a concrete
// policy only overrides the handful of seams its behavior actually touches;
// the happy path of Dolev/Bracha/RCO never branches on a behavior name.
type Policy interface {
	// Name reports the configured behavior, used only for logging.
	Name() types.Behavior

	// RCShouldRelay gates all handling of a received RC packet: returning
	// false drops it before delivery, forwarding or any other step, which
	// implements no_relay.
	RCShouldRelay() bool

	// RCOnReceive runs once per RC packet received, after eligibility and
	// before forwarding decisions; it implements forge_sender's side effect
	// of emitting a fabricated announcement regardless of the packet's own
	// disposition.
	RCOnReceive(d *Dolev)

	// BRBSendTargets narrows the neighbor set the origin's initial SEND
	// fans out to. A nil return means "use every neighbor" (the default).
	BRBSendTargets(all []types.NodeID) []types.NodeID

	// BRBOnStart runs once when a Bracha engine is constructed, implementing
	// collude's startup forgery.
	BRBOnStart(b *Bracha)

	// BRBOnReceive runs for every BRB frame RC-delivered, before the normal
	// SEND/ECHO/READY dispatch, implementing collude's immediate-echo/ready
	// support for any forged content it recognizes.
	BRBOnReceive(b *Bracha, frame types.BrachaFrame)

	// RCOTag transforms the vector-clock snapshot an origin attaches to its
	// own outgoing RCO broadcast, implementing vc_inflation/vc_deflation.
	RCOTag(vc types.VectorClock) types.VectorClock

	// RCOShouldPend gates insertion into the RCO pending set on brb_deliver,
	// implementing rco_drop_messages.
	RCOShouldPend() bool
}

// basePolicy implements every seam as a no-op / pass-through. Concrete
// policies embed it and override only what their behavior changes.
type basePolicy struct {
	behavior types.Behavior
}

func (b basePolicy) Name() types.Behavior                 { return b.behavior }
func (basePolicy) RCShouldRelay() bool                    { return true }
func (basePolicy) RCOnReceive(*Dolev)                     {}
func (basePolicy) BRBSendTargets(all []types.NodeID) []types.NodeID { return nil }
func (basePolicy) BRBOnStart(*Bracha)                     {}
func (basePolicy) BRBOnReceive(*Bracha, types.BrachaFrame) {}
func (basePolicy) RCOTag(vc types.VectorClock) types.VectorClock { return vc }
func (basePolicy) RCOShouldPend() bool                    { return true }

// NewPolicy selects the concrete Policy for a configured behavior.
func NewPolicy(cfg *types.Config) Policy {
	base := basePolicy{behavior: cfg.Behavior}
	switch cfg.Behavior {
	case types.BehaviorNoRelay:
		return noRelayPolicy{base}
	case types.BehaviorForgeSender:
		return forgeSenderPolicy{base}
	case types.BehaviorLimitedBroadcast:
		return limitedBroadcastPolicy{basePolicy: base, limit: cfg.LimitedNeighbors}
	case types.BehaviorCollude:
		return colludePolicy{base}
	case types.BehaviorRCODropMessages:
		return rcoDropPolicy{base}
	case types.BehaviorVCInflation:
		return vcInflationPolicy{base}
	case types.BehaviorVCDeflation:
		return vcDeflationPolicy{base}
	default:
		return base
	}
}

// -- no_relay --------------------------------------------------------------

type noRelayPolicy struct{ basePolicy }

func (noRelayPolicy) RCShouldRelay() bool { return false }

// -- forge_sender -----------------------------------------------------------

type forgeSenderPolicy struct{ basePolicy }

func (forgeSenderPolicy) RCOnReceive(d *Dolev) {
	d.attemptForgery()
}

// -- limited_broadcast --------------------------------------------------------

type limitedBroadcastPolicy struct {
	basePolicy
	limit int
}

func (p limitedBroadcastPolicy) BRBSendTargets(all []types.NodeID) []types.NodeID {
	if p.limit <= 0 || p.limit >= len(all) {
		return all
	}
	shuffled := make([]types.NodeID, len(all))
	copy(shuffled, all)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:p.limit]
}

// -- collude ------------------------------------------------------------------

type colludePolicy struct{ basePolicy }

func (colludePolicy) BRBOnStart(b *Bracha) {
	b.attemptForgery()
}

func (colludePolicy) BRBOnReceive(b *Bracha, frame types.BrachaFrame) {
	b.supportForgery(frame)
}

// ForgedContentPrefix marks a fabricated content value, recognized by the
// collude behavior regardless of which node produced it.
const ForgedContentPrefix = "FORGED-"

func forgedContent(victim types.NodeID) string {
	return fmt.Sprintf("%sMessage-from-%d", ForgedContentPrefix, victim)
}

// -- rco_drop_messages --------------------------------------------------------

type rcoDropPolicy struct{ basePolicy }

func (rcoDropPolicy) RCOShouldPend() bool { return false }

// -- vc_inflation / vc_deflation -----------------------------------------------

type vcInflationPolicy struct{ basePolicy }

func (vcInflationPolicy) RCOTag(vc types.VectorClock) types.VectorClock {
	out := vc.Clone()
	for i := range out {
		out[i] += 10
	}
	return out
}

type vcDeflationPolicy struct{ basePolicy }

func (vcDeflationPolicy) RCOTag(vc types.VectorClock) types.VectorClock {
	return types.NewVectorClock(len(vc))
}
