package fuzzy

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
	"github.com/JimmyOei/distributed-algorithms/test"
)

// TestHonestClusterDeliversToEveryone exercises a complete graph of honest
// nodes: one RCO broadcast from node 0, every node expected to causally
// deliver it exactly once.
func TestHonestClusterDeliversToEveryone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 4
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = 0
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
	})
	defer cluster.Shutdown()

	cluster.Nodes[0].RCOBroadcast("hello")

	ok := test.WaitThisOrTimeout(func() {
		for {
			allDelivered := true
			for _, node := range cluster.Nodes {
				if len(node.Deliveries()) == 0 {
					allDelivered = false
					break
				}
			}
			if allDelivered {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)

	if !ok {
		test.PrintStackTrace(t)
		t.Fatalf("not every node delivered the broadcast in time")
	}

	for i, node := range cluster.Nodes {
		deliveries := node.Deliveries()
		if len(deliveries) != 1 {
			t.Fatalf("node %d: expected exactly one delivery, got %d", i, len(deliveries))
		}
		if deliveries[0].Content != "hello" {
			t.Fatalf("node %d: expected content %q, got %q", i, "hello", deliveries[0].Content)
		}
		if deliveries[0].Origin != types.NodeID(0) {
			t.Fatalf("node %d: expected origin 0, got %d", i, deliveries[0].Origin)
		}
	}
}

// TestNoRelayByzantineNeighborStillDelivers seats a single no_relay
// Byzantine node among honest neighbors on a graph dense enough to route
// around it via f+1 node-disjoint paths.
func TestNoRelayByzantineNeighborStillDelivers(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 7
	const f = 1
	graph := test.CompleteGraph(n)

	cluster := test.NewCluster(t, graph, func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		if cfg.NodeID == 1 {
			cfg.Behavior = types.BehaviorNoRelay
		}
	})
	defer cluster.Shutdown()

	cluster.Nodes[0].RCOBroadcast("past-the-byzantine-node")

	ok := test.WaitThisOrTimeout(func() {
		for {
			allDelivered := true
			for i, node := range cluster.Nodes {
				if i == 1 {
					continue // the no_relay node need not deliver anything itself
				}
				if len(node.Deliveries()) == 0 {
					allDelivered = false
					break
				}
			}
			if allDelivered {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)

	if !ok {
		test.PrintStackTrace(t)
		t.Fatalf("honest nodes failed to deliver despite f=%d node-disjoint routes around the faulty node", f)
	}
}

// TestRCODeliversCausallyEvenOutOfOrder checks the RCO pending/deliver loop:
// node 1 broadcasts "second" after it has delivered node 0's "first", so
// "second" causally depends on "first", and the observer node 2 must never
// deliver "second" before "first".
func TestRCODeliversCausallyEvenOutOfOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 3
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = 0
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 3 * time.Millisecond
	})
	defer cluster.Shutdown()

	cluster.Nodes[0].RCOBroadcast("first")
	time.Sleep(20 * time.Millisecond) // let "first" settle everywhere
	cluster.Nodes[1].RCOBroadcast("second")

	observer := cluster.Nodes[2]
	ok := test.WaitThisOrTimeout(func() {
		for len(observer.Deliveries()) < 2 {
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)

	if !ok {
		test.PrintStackTrace(t)
		t.Fatalf("observer node did not deliver both causally ordered broadcasts in time")
	}

	deliveries := observer.Deliveries()
	if deliveries[0].Content != "first" || deliveries[1].Content != "second" {
		t.Fatalf("causal order violated: delivered %q then %q", deliveries[0].Content, deliveries[1].Content)
	}
}

// TestCollusionCannotForgeDeliveryAlone is Scenario C: a single colluding
// node RC-broadcasts forged ECHO and READY records for a message no correct
// process ever sent. With f=1 it cannot single-handedly reach the 2f+1=3
// READY delivery threshold, so no correct process may ever brb_deliver the
// forged content, even after giving the cluster time to settle.
func TestCollusionCannotForgeDeliveryAlone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 7
	const f = 1
	const colludingNode = 3
	graph := test.CompleteGraph(n)

	cluster := test.NewCluster(t, graph, func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		if int(cfg.NodeID) == colludingNode {
			cfg.Behavior = types.BehaviorCollude
		}
	})
	defer cluster.Shutdown()

	ok := test.WaitThisOrTimeout(func() {
		time.Sleep(200 * time.Millisecond)
	}, 2*time.Second)
	if !ok {
		t.Fatalf("cluster failed to settle")
	}

	for i, node := range cluster.Nodes {
		if i == colludingNode {
			continue
		}
		if got := testutil.ToFloat64(node.Metrics().BRBDelivered); got != 0 {
			t.Fatalf("node %d: expected no BRB deliveries from a lone colluder, got %v", i, got)
		}
	}
}

// TestBRBSurvivesSenderGoingSilentAfterSend is Scenario D: the origin's BRB
// contract requires only the initial SEND fan-out; once that has reached the
// other nodes, the origin is shut down (a crash from the other nodes' point of
// view), and the other three nodes must still echo, ready and deliver
// amongst themselves.
func TestBRBSurvivesSenderGoingSilentAfterSend(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 4
	const f = 1
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
	})
	defer cluster.Shutdown()

	cluster.Nodes[0].BRBBroadcast("m")

	// The SEND has reached nodes 1-3 once each of them has emitted a BRB
	// frame of its own; only then is node 0 silenced.
	reached := test.WaitThisOrTimeout(func() {
		for i := 1; i < n; i++ {
			for testutil.ToFloat64(cluster.Nodes[i].Metrics().BRBSent) == 0 {
				time.Sleep(time.Millisecond)
			}
		}
	}, 2*time.Second)
	if !reached {
		t.Fatalf("node 0's SEND did not reach nodes 1-%d in time", n-1)
	}
	cluster.Nodes[0].Shutdown()

	ok := test.WaitThisOrTimeout(func() {
		for {
			allDelivered := true
			for i := 1; i < n; i++ {
				if testutil.ToFloat64(cluster.Nodes[i].Metrics().BRBDelivered) == 0 {
					allDelivered = false
					break
				}
			}
			if allDelivered {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)

	if !ok {
		test.PrintStackTrace(t)
		t.Fatalf("nodes 1-3 did not all brb_deliver after node 0 went silent post-SEND")
	}
}

// TestVCInflationStallsDeliveryForever is Scenario F: a node tagging its
// outgoing RCO broadcast with an inflated vector clock gets BRB-delivered
// everywhere, but since no correct process's VC can ever reach the inflated
// tag, it must never be RCO-delivered -- while correct-origin broadcasts
// from other nodes continue to be delivered normally.
func TestVCInflationStallsDeliveryForever(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 4
	const f = 1
	const inflatorNode = 3
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		if int(cfg.NodeID) == inflatorNode {
			cfg.Behavior = types.BehaviorVCInflation
		}
	})
	defer cluster.Shutdown()

	cluster.Nodes[inflatorNode].RCOBroadcast("X")

	ok := test.WaitThisOrTimeout(func() {
		for testutil.ToFloat64(cluster.Nodes[0].Metrics().BRBDelivered) == 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)
	if !ok {
		t.Fatalf("inflated broadcast never reached BRB-delivery at node 0")
	}

	// Give deliver-pending plenty of chances to (wrongly) fire.
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < n; i++ {
		if i == inflatorNode {
			continue
		}
		for _, d := range cluster.Nodes[i].Deliveries() {
			if d.Content == "X" {
				t.Fatalf("node %d: rco_delivered the vc-inflated message, but its VC can never dominate the inflated tag", i)
			}
		}
	}

	// Liveness for correct-origin messages is unaffected by the stalled entry.
	cluster.Nodes[0].RCOBroadcast("Y")
	ok = test.WaitThisOrTimeout(func() {
		for {
			found := false
			for _, d := range cluster.Nodes[1].Deliveries() {
				if d.Content == "Y" {
					found = true
					break
				}
			}
			if found {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)
	if !ok {
		t.Fatalf("node 1 never delivered node 0's correct-origin broadcast despite the stalled inflated entry")
	}
}

// TestLimitedBroadcastOriginStillReachesEveryone exercises limited_broadcast:
// the origin narrows its own initial SEND fan-out to f+1 random neighbors.
// Each of them RC-delivers it directly (MD.1) and relays an empty-path
// announcement (MD.2); at every other node those f+1 announcements are
// node-disjoint paths, so the SEND still reaches every correct process on a
// complete graph, and BRB still reaches every node from there.
func TestLimitedBroadcastOriginStillReachesEveryone(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 5
	const f = 1
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		if cfg.NodeID == 0 {
			cfg.Behavior = types.BehaviorLimitedBroadcast
			cfg.LimitedNeighbors = f + 1
		}
	})
	defer cluster.Shutdown()

	cluster.Nodes[0].BRBBroadcast("limited")

	ok := test.WaitThisOrTimeout(func() {
		for {
			allDelivered := true
			for i := 1; i < n; i++ {
				if testutil.ToFloat64(cluster.Nodes[i].Metrics().BRBDelivered) == 0 {
					allDelivered = false
					break
				}
			}
			if allDelivered {
				return
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)

	if !ok {
		test.PrintStackTrace(t)
		t.Fatalf("nodes 1-%d did not all brb_deliver despite the origin narrowing its own SEND fan-out to f+1 neighbors", n-1)
	}
}

// TestVCDeflationMessagesAlwaysDeliverImmediately exercises vc_deflation: a
// node tagging its outgoing broadcasts with the zero vector regardless of its
// true VC produces a tag every correct process's VC trivially dominates, so
// its broadcasts keep delivering immediately even after its own true VC has
// advanced past zero.
func TestVCDeflationMessagesAlwaysDeliverImmediately(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	const n = 4
	const f = 1
	const deflatorNode = 3
	cluster := test.NewCluster(t, test.CompleteGraph(n), func(cfg *types.Config) {
		cfg.F = f
		cfg.MinDelay = time.Millisecond
		cfg.MaxDelay = 5 * time.Millisecond
		if int(cfg.NodeID) == deflatorNode {
			cfg.Behavior = types.BehaviorVCDeflation
		}
	})
	defer cluster.Shutdown()

	cluster.Nodes[deflatorNode].RCOBroadcast("X")
	ok := test.WaitThisOrTimeout(func() {
		for len(cluster.Nodes[0].Deliveries()) == 0 {
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)
	if !ok {
		t.Fatalf("\"X\" never delivered at node 0")
	}

	// The deflator's own true VC has now advanced past zero; a second
	// deflated broadcast must still deliver immediately rather than stalling
	// like an inflated tag would.
	cluster.Nodes[deflatorNode].RCOBroadcast("Y")
	ok = test.WaitThisOrTimeout(func() {
		for {
			for _, d := range cluster.Nodes[0].Deliveries() {
				if d.Content == "Y" {
					return
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}, 2*time.Second)
	if !ok {
		t.Fatalf("\"Y\" (deflated tag) never delivered at node 0, despite the zero tag being trivially dominated by any VC")
	}
}
