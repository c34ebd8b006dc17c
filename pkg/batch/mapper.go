// Package batch partitions the unit catalog into ordered batches for
// parallel processing.
package batch

import (
	"github.com/costray/costray/pkg/protocol"
)

// DefaultPriorityCategories are the service categories that dominate cloud
// spend in practice. Units in these categories are analyzed first so that an
// interrupted run has most likely already covered the highest-value targets.
var DefaultPriorityCategories = []string{
	"compute",
	"database",
	"storage",
	"serverless",
	"containers",
}

// Batch is a contiguous subset of the catalog dispatched together to one
// worker context. Units within a batch run sequentially.
type Batch struct {
	ID    int
	Units []protocol.Unit
}

// Mapper splits the catalog into a high-priority batch 0 followed by
// fixed-size chunks of the remainder, preserving catalog order within each
// group.
type Mapper struct {
	priorityCategories map[string]bool
}

// NewMapper creates a mapper with the given priority categories; nil or
// empty falls back to DefaultPriorityCategories.
func NewMapper(priorityCategories []string) *Mapper {
	if len(priorityCategories) == 0 {
		priorityCategories = DefaultPriorityCategories
	}

	lookup := make(map[string]bool, len(priorityCategories))
	for _, category := range priorityCategories {
		lookup[category] = true
	}

	return &Mapper{priorityCategories: lookup}
}

// Partition splits units into ordered batches. The priority subset forms
// batch 0 regardless of batchSize; the remainder is chunked sequentially
// into batches of batchSize. A batchSize below 1 is treated as 1.
func (m *Mapper) Partition(units []protocol.Unit, batchSize int) []Batch {
	if batchSize < 1 {
		batchSize = 1
	}

	priority := make([]protocol.Unit, 0)
	remainder := make([]protocol.Unit, 0)

	for _, unit := range units {
		if m.priorityCategories[unit.Category()] {
			priority = append(priority, unit)
		} else {
			remainder = append(remainder, unit)
		}
	}

	batches := make([]Batch, 0, 1+(len(remainder)+batchSize-1)/batchSize)

	if len(priority) > 0 {
		batches = append(batches, Batch{ID: 0, Units: priority})
	}

	for start := 0; start < len(remainder); start += batchSize {
		end := min(start+batchSize, len(remainder))

		batches = append(batches, Batch{ID: len(batches), Units: remainder[start:end]})
	}

	return batches
}
