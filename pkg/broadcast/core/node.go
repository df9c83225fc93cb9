package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/definition"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/metrics"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// Node wires the RC, BRB and RCO engines of a single process together
// behind one mutex, realizing the single-task-queue scheduling model of
// SPEC_FULL.md §5: every handler runs start-to-finish with the mutex held,
// and the only suspension points are inside the Transport's per-packet
// delay and final hand-off, neither of which touches Node state directly.
type Node struct {
	mutex sync.Mutex

	id     types.NodeID
	cfg    *types.Config
	log    types.Logger
	policy Policy

	transport Transport
	invoker   Invoker
	metrics   *metrics.Metrics

	dolev  *Dolev
	bracha *Bracha
	rco    *RCO

	deliveriesMutex sync.Mutex
	deliveries      []Delivery

	context context.Context
	finish  context.CancelFunc
}

// Delivery records one application-level (RCO) delivery, kept so a caller
// can inspect what a node has seen without scraping its log output.
type Delivery struct {
	Origin  types.NodeID
	Content string
	VC      types.VectorClock
}

// NewNode constructs a fully wired process: transport -> Dolev -> Bracha ->
// RCO, with the configured Byzantine policy installed at every seam. reg may
// be nil, in which case metrics are tracked but never scraped.
func NewNode(cfg *types.Config, transport Transport, invoker Invoker, reg prometheus.Registerer) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, done := context.WithCancel(context.Background())
	node := &Node{
		id:        cfg.NodeID,
		cfg:       cfg,
		log:       cfg.Logger,
		policy:    NewPolicy(cfg),
		transport: transport,
		invoker:   invoker,
		context:   ctx,
		finish:    done,
	}
	node.metrics = metrics.New(reg, int(cfg.NodeID))

	dolevCfg, brachaCfg, rcoCfg := *cfg, *cfg, *cfg
	dolevCfg.Logger = definition.NewLayerLogger(cfg.Logger, types.DebugDolev, cfg)
	brachaCfg.Logger = definition.NewLayerLogger(cfg.Logger, types.DebugBracha, cfg)
	rcoCfg.Logger = definition.NewLayerLogger(cfg.Logger, types.DebugRCO, cfg)

	node.dolev = NewDolev(&dolevCfg, transport.Neighbors(), transport, node.policy, node.metrics, nil)
	node.bracha = NewBracha(&brachaCfg, transport.Neighbors(), node.dolev, node.policy, node.metrics, nil)
	node.dolev.onDeliver = node.bracha.HandleRCDeliver
	node.rco = NewRCO(&rcoCfg, node.bracha, node.policy, node.metrics, node.recordDelivery)
	node.bracha.onDeliver = node.rco.HandleBRBDeliver

	invoker.Spawn(node.poll)
	return node, nil
}

func (n *Node) recordDelivery(origin types.NodeID, content string, vc types.VectorClock) {
	n.deliveriesMutex.Lock()
	defer n.deliveriesMutex.Unlock()
	n.deliveries = append(n.deliveries, Delivery{Origin: origin, Content: content, VC: vc})
}

// Metrics exposes this node's Prometheus counters/gauges, so a caller (or a
// test) can observe layer activity without scraping an HTTP endpoint.
func (n *Node) Metrics() *metrics.Metrics {
	return n.metrics
}

// Deliveries returns a snapshot of every RCO delivery this node has made so
// far, in delivery order.
func (n *Node) Deliveries() []Delivery {
	n.deliveriesMutex.Lock()
	defer n.deliveriesMutex.Unlock()
	out := make([]Delivery, len(n.deliveries))
	copy(out, n.deliveries)
	return out
}

// poll is the transport receive loop: every arriving envelope is handed to
// the RC engine under the node's mutex, one at a time, matching the
// cooperative single-task-queue model.
func (n *Node) poll() {
	for {
		select {
		case <-n.context.Done():
			return
		case env, ok := <-n.transport.Listen():
			if !ok {
				return
			}
			n.invoker.Spawn(func() {
				n.mutex.Lock()
				defer n.mutex.Unlock()
				n.dolev.HandleReceive(env.From, env.Frame)
			})
		}
	}
}

// RCBroadcast triggers rc_broadcast(content) at this node.
func (n *Node) RCBroadcast(content string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.dolev.Broadcast(content)
}

// BRBBroadcast triggers brb_broadcast(content) at this node.
func (n *Node) BRBBroadcast(content string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.bracha.Broadcast(content)
}

// RCOBroadcast triggers rco_broadcast(content) at this node.
func (n *Node) RCOBroadcast(content string) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.rco.Broadcast(content)
}

// Run starts the configured number of application-level RCO broadcasts,
// "Message-0", "Message-1", ... mirroring the reference implementation's
// on_start behavior.
func (n *Node) Run() {
	for i := 0; i < n.cfg.NumBroadcasts; i++ {
		n.RCOBroadcast(fmt.Sprintf("Message-%d", i))
	}
}

func (n *Node) Shutdown() {
	n.finish()
	n.transport.Close()
}
