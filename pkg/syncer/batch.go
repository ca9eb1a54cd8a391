package syncer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/harrisonrobin/ganttbridge/pkg/model"
)

// Result is the outcome of one record's remote call.
type Result struct {
	Store  model.StoreID
	Action model.Action
	// ID is the record id the widget sent (a phantom id for adds).
	ID string
	// ServerID is set for successful adds.
	ServerID string
	// Skipped records never reached the data service.
	Skipped bool
	Err     error
}

// Batch tracks the remote calls issued for one change notification. Calls
// run independently; Wait only observes them.
type Batch struct {
	wg      sync.WaitGroup
	mu      sync.Mutex
	results []Result
}

func (b *Batch) add(r Result) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results = append(b.results, r)
}

// Wait blocks until every call of the batch has completed and returns their
// results in completion order.
func (b *Batch) Wait() []Result {
	b.wg.Wait()
	b.mu.Lock()
	defer b.mu.Unlock()
	results := make([]Result, len(b.results))
	copy(results, b.results)
	return results
}

// Err waits for the batch and joins every per-record failure.
func (b *Batch) Err() error {
	var errs []error
	for _, r := range b.Wait() {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s %s %s: %w", r.Action, r.Store, r.ID, r.Err))
		}
	}
	return errors.Join(errs...)
}
