// Command broadcastdemo wires an in-memory cluster of nodes over a
// configurable complete graph and drives a handful of application-level
// broadcasts end-to-end, printing the §6 log lines as each layer delivers.
// It is a stand-in for the reference implementation's docker-compose/
// topology-file demonstration harness, which is out of scope (SPEC_FULL.md
// §1, §12) -- this binary exercises the same algorithms without any of the
// container orchestration or CLI argument parsing that tooling provided.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/core"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/definition"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

func main() {
	n := flag.Int("n", 4, "number of processes")
	f := flag.Int("f", 1, "Byzantine fault tolerance parameter")
	byzantineNode := flag.Int("byzantine-node", -1, "node id to run a Byzantine behavior on, -1 for none")
	behavior := flag.String("behavior", string(types.BehaviorCollude), "Byzantine behavior for -byzantine-node")
	debug := flag.Bool("debug", true, "enable debug-level logging on every node")
	flag.Parse()

	ids := make([]types.NodeID, *n)
	graph := make([][]types.NodeID, *n)
	for i := range ids {
		ids[i] = types.NodeID(i)
	}
	for i := range graph {
		var neighbors []types.NodeID
		for j := range ids {
			if j != i {
				neighbors = append(neighbors, types.NodeID(j))
			}
		}
		graph[i] = neighbors
	}

	invoker := core.NewInvoker()
	network := core.NewNetwork(ids)

	nodes := make([]*core.Node, *n)
	for i := 0; i < *n; i++ {
		cfg := definition.DefaultConfig(types.NodeID(i), *n)
		cfg.F = *f
		cfg.Logger.ToggleDebug(*debug)
		if *debug {
			cfg.DebugMode = 2
		}
		if i == *byzantineNode {
			cfg.Behavior = types.Behavior(*behavior)
		}

		transport := core.NewInMemoryTransport(cfg.NodeID, graph[i], network, invoker, cfg.Logger, cfg.MinDelay, cfg.MaxDelay)
		node, err := core.NewNode(cfg, transport, invoker, nil)
		if err != nil {
			fmt.Printf("failed constructing node %d: %v\n", i, err)
			return
		}
		nodes[i] = node
	}

	fmt.Printf("broadcastdemo: %d nodes, f=%d, byzantine-node=%d (%s)\n", *n, *f, *byzantineNode, *behavior)

	nodes[0].RCBroadcast("hello")
	time.Sleep(500 * time.Millisecond)

	nodes[0].BRBBroadcast("Message-from-0")
	time.Sleep(500 * time.Millisecond)

	nodes[0].RCOBroadcast("Message-0")
	if *n > 1 {
		nodes[1].RCOBroadcast("Message-1")
	}
	time.Sleep(time.Second)

	for _, node := range nodes {
		node.Shutdown()
	}
}
