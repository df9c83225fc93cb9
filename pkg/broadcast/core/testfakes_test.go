package core

import (
	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// fakeLogger discards everything; these tests assert on state and captured
// sends, not on log output.
type fakeLogger struct{}

func (fakeLogger) Info(...interface{})           {}
func (fakeLogger) Infof(string, ...interface{})  {}
func (fakeLogger) Warn(...interface{})           {}
func (fakeLogger) Warnf(string, ...interface{})  {}
func (fakeLogger) Error(...interface{})          {}
func (fakeLogger) Errorf(string, ...interface{}) {}
func (fakeLogger) Debug(...interface{})          {}
func (fakeLogger) Debugf(string, ...interface{}) {}
func (fakeLogger) ToggleDebug(bool) bool         { return false }

// sentFrame records one synchronous, delay-free Send call.
type sentFrame struct {
	to    types.NodeID
	frame types.DolevFrame
}

// fakeTransport captures every Send call immediately, with no delay and no
// actual delivery, so handler-level tests can assert on exactly what a
// single HandleReceive/Broadcast call fanned out.
type fakeTransport struct {
	neighbors []types.NodeID
	sent      []sentFrame
}

func newFakeTransport(neighbors []types.NodeID) *fakeTransport {
	return &fakeTransport{neighbors: neighbors}
}

func (t *fakeTransport) Send(to types.NodeID, frame types.DolevFrame) {
	t.sent = append(t.sent, sentFrame{to: to, frame: frame})
}

func (t *fakeTransport) Listen() <-chan Envelope   { return nil }
func (t *fakeTransport) Neighbors() []types.NodeID { return t.neighbors }
func (t *fakeTransport) Close()                    {}

func (t *fakeTransport) sentTo(to types.NodeID) []types.DolevFrame {
	var out []types.DolevFrame
	for _, s := range t.sent {
		if s.to == to {
			out = append(out, s.frame)
		}
	}
	return out
}

func testConfig(nodeID types.NodeID, n, f int) *types.Config {
	return &types.Config{
		NodeID: nodeID,
		N:      n,
		F:      f,
		Logger: fakeLogger{},
	}
}
