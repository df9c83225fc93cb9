// Package types holds the wire frames, keys and small interfaces shared by
// every layer of the broadcast stack.
package types

import "fmt"

// NodeID identifies a process among the fixed set [0,N).
type NodeID int

// Key uniquely identifies a broadcast at any layer: the pair (origin, content).
// Keys are immutable once constructed.
type Key struct {
	Origin  NodeID
	Content string
}

func NewKey(origin NodeID, content string) Key {
	return Key{Origin: origin, Content: content}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,%q)", k.Origin, k.Content)
}

// Path is a sequence of node ids describing intermediate hops of an RC
// packet, not including the sender and recipient of the current hop.
type Path []NodeID

// Intermediates returns the path's intermediate nodes for the node-disjoint
// test: every entry except the trailing one, which is the delivering
// neighbor rather than a relay hop.
func (p Path) Intermediates() map[NodeID]struct{} {
	set := make(map[NodeID]struct{}, len(p))
	if len(p) == 0 {
		return set
	}
	for _, n := range p[:len(p)-1] {
		set[n] = struct{}{}
	}
	return set
}

// Clone returns a copy safe to store independently of the caller's slice.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// Append returns a new path with n appended, leaving the receiver untouched.
func (p Path) Append(n NodeID) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = n
	return out
}

// VectorClock is a length-N vector of per-process message counts.
type VectorClock []uint64

func NewVectorClock(n int) VectorClock {
	return make(VectorClock, n)
}

func (vc VectorClock) Clone() VectorClock {
	c := make(VectorClock, len(vc))
	copy(c, vc)
	return c
}

// Dominates reports whether vc[j] >= other[j] for every j, the dominance
// check used by deliver-pending.
func (vc VectorClock) Dominates(other VectorClock) bool {
	for j := range other {
		if vc[j] < other[j] {
			return false
		}
	}
	return true
}
