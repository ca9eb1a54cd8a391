// Package dataversetest provides an in-memory dataverse.WebAPI for tests.
package dataversetest

import (
	"context"
	"fmt"
	"sync"

	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
)

// Call records one request made against the fake.
type Call struct {
	Method    string
	EntitySet string
	ID        string
	Query     string
	Payload   model.Entity
}

// Fake answers retrieves from Records and assigns sequential ids on create.
// FailOn makes any call whose predicate matches fail with the returned error.
type Fake struct {
	Records map[string][]model.Entity
	FailOn  func(c Call) error

	mu    sync.Mutex
	calls []Call
	seq   int
}

func New() *Fake {
	return &Fake{Records: map[string][]model.Entity{}}
}

func (f *Fake) record(c Call) error {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	fail := f.FailOn
	f.mu.Unlock()
	if fail != nil {
		return fail(c)
	}
	return nil
}

// Calls returns the calls made so far, filtered by method when given.
func (f *Fake) Calls(method string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Call
	for _, c := range f.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) RetrieveMultipleRecords(ctx context.Context, entitySet, query string) (*dataverse.RetrieveMultipleResponse, error) {
	if err := f.record(Call{Method: "retrieve", EntitySet: entitySet, Query: query}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dataverse.RetrieveMultipleResponse{Entities: append([]model.Entity(nil), f.Records[entitySet]...)}, nil
}

func (f *Fake) CreateRecord(ctx context.Context, entitySet string, payload model.Entity) (*dataverse.CreateResponse, error) {
	if err := f.record(Call{Method: "create", EntitySet: entitySet, Payload: payload}); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	return &dataverse.CreateResponse{ID: fmt.Sprintf("server%d", f.seq)}, nil
}

func (f *Fake) UpdateRecord(ctx context.Context, entitySet, id string, payload model.Entity) error {
	return f.record(Call{Method: "update", EntitySet: entitySet, ID: id, Payload: payload})
}

func (f *Fake) DeleteRecord(ctx context.Context, entitySet, id string) error {
	return f.record(Call{Method: "delete", EntitySet: entitySet, ID: id})
}
