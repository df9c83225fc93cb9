// Package test provides an in-memory cluster builder for exercising the
// broadcast stack end-to-end, in the same spirit as a unit-test harness that
// wires up a full group of peers against in-process transports instead of
// real sockets.
package test

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/core"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/definition"
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// TestInvoker is a WaitGroup-backed Invoker so a test can block until every
// spawned goroutine -- delay timers, transport hand-offs, receive handlers --
// has actually finished, instead of racing a fixed sleep against shutdown.
type TestInvoker struct {
	group *sync.WaitGroup
}

func NewTestInvoker() *TestInvoker {
	return &TestInvoker{group: &sync.WaitGroup{}}
}

func (t *TestInvoker) Spawn(f func()) {
	t.group.Add(1)
	go func() {
		defer t.group.Done()
		f()
	}()
}

func (t *TestInvoker) Wait() {
	t.group.Wait()
}

var _ core.Invoker = (*TestInvoker)(nil)

// Cluster is a fully wired set of Nodes over a given neighbor graph, sharing
// one in-memory Network.
type Cluster struct {
	T       *testing.T
	Configs []*types.Config
	Nodes   []*core.Node
	invoker *TestInvoker
	network *core.Network
}

// CompleteGraph returns the symmetric neighbor list for n nodes where every
// pair is directly connected.
func CompleteGraph(n int) [][]types.NodeID {
	graph := make([][]types.NodeID, n)
	for i := 0; i < n; i++ {
		var neighbors []types.NodeID
		for j := 0; j < n; j++ {
			if j != i {
				neighbors = append(neighbors, types.NodeID(j))
			}
		}
		graph[i] = neighbors
	}
	return graph
}

// NewCluster builds n nodes connected according to graph (graph[i] is node
// i's neighbor list), each configured by configure (nil leaves
// definition.DefaultConfig as-is).
func NewCluster(t *testing.T, graph [][]types.NodeID, configure func(cfg *types.Config)) *Cluster {
	n := len(graph)
	ids := make([]types.NodeID, n)
	for i := range ids {
		ids[i] = types.NodeID(i)
	}

	invoker := NewTestInvoker()
	network := core.NewNetwork(ids)

	cluster := &Cluster{
		T:       t,
		invoker: invoker,
		network: network,
	}

	for i := 0; i < n; i++ {
		cfg := definition.DefaultConfig(types.NodeID(i), n)
		cfg.Logger.ToggleDebug(false)
		if configure != nil {
			configure(cfg)
		}

		transport := core.NewInMemoryTransport(cfg.NodeID, graph[i], network, invoker, cfg.Logger, cfg.MinDelay, cfg.MaxDelay)
		node, err := core.NewNode(cfg, transport, invoker, nil)
		if err != nil {
			t.Fatalf("failed creating node %d: %v", i, err)
		}

		cluster.Configs = append(cluster.Configs, cfg)
		cluster.Nodes = append(cluster.Nodes, node)
	}

	return cluster
}

// Shutdown stops every node's transport and waits for all outstanding
// goroutines to drain.
func (c *Cluster) Shutdown() {
	for _, node := range c.Nodes {
		node.Shutdown()
	}
	c.invoker.Wait()
}

func PrintStackTrace(t *testing.T) {
	buf := make([]byte, 1<<16)
	n := runtime.Stack(buf, true)
	t.Errorf("%s", buf[:n])
}

// WaitThisOrTimeout runs cb in its own goroutine and reports whether it
// completed before duration elapsed.
func WaitThisOrTimeout(cb func(), duration time.Duration) bool {
	done := make(chan bool, 1)
	go func() {
		cb()
		done <- true
	}()
	select {
	case <-done:
		return true
	case <-time.After(duration):
		return false
	}
}
