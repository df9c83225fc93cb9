package definition

import (
	"time"

	"github.com/JimmyOei/distributed-algorithms/pkg/broadcast/types"
)

// DefaultConfig mirrors the reference implementation's environment-variable
// defaults (FAULTS=0, MIN/MAX_MESSAGE_DELAY=10ms/100ms, NUM_BROADCASTS=1,
// BYZANTINE_BEHAVIOR=none, DEBUG_MODE=1) for a process with the given id
// among n total processes.
func DefaultConfig(nodeID types.NodeID, n int) *types.Config {
	return &types.Config{
		NodeID:           nodeID,
		N:                n,
		F:                0,
		MinDelay:         10 * time.Millisecond,
		MaxDelay:         100 * time.Millisecond,
		NumBroadcasts:    1,
		Behavior:         types.BehaviorNone,
		LimitedNeighbors: 1,
		DebugMode:        1,
		DebugAlgorithm:   types.DebugAll,
		Logger:           NewDefaultLogger(nodeID),
	}
}
