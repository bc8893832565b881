package id

import (
	"fmt"
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	mu   sync.Mutex
	node *snowflake.Node
)

// Init sets the snowflake node for this process. A single collector process runs at a
// time, so callers that never call Init get node 0.
func Init(nodeID int64) error {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		return fmt.Errorf("creating snowflake node %d: %w", nodeID, err)
	}
	mu.Lock()
	node = n
	mu.Unlock()
	return nil
}

// New returns a time-ordered int64 id, used for import lineage ids.
func New() int64 {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		// node 0 is always in range
		node, _ = snowflake.NewNode(0)
	}
	return node.Generate().Int64()
}

// NewString returns New formatted as a base58 string, used for run correlation ids.
func NewString() string {
	mu.Lock()
	defer mu.Unlock()
	if node == nil {
		node, _ = snowflake.NewNode(0)
	}
	return node.Generate().Base58()
}
