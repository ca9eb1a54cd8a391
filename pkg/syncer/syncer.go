// Package syncer turns the widget's local mutations into create, update and
// delete calls against the data service.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/index"
	"github.com/harrisonrobin/ganttbridge/pkg/mapping"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnknownStore  = errors.New("syncer: unknown store")
	ErrUnknownAction = errors.New("syncer: unknown action")
)

// StorePatcher applies server-side results to the widget's record store.
type StorePatcher interface {
	ApplyChangeset(store model.StoreID, cs model.Changeset) error
}

type Synchronizer struct {
	api    dataverse.WebAPI
	mapper *mapping.Mapper
	index  *index.PhantomIndex
	log    log.FieldLogger
	// nil means unbounded
	sem chan struct{}
}

type Option func(*Synchronizer)

func WithLogger(l log.FieldLogger) Option {
	return func(s *Synchronizer) { s.log = l }
}

// WithIndex records phantom to server id swaps in idx and resolves
// dependency endpoints through it.
func WithIndex(idx *index.PhantomIndex) Option {
	return func(s *Synchronizer) { s.index = idx }
}

// WithMaxInFlight bounds the number of concurrent remote writes across all
// batches. Zero or less leaves it unbounded.
func WithMaxInFlight(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.sem = make(chan struct{}, n)
		} else {
			s.sem = nil
		}
	}
}

func New(api dataverse.WebAPI, m *mapping.Mapper, opts ...Option) *Synchronizer {
	s := &Synchronizer{api: api, mapper: m, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if s.index != nil {
		s.mapper = s.mapper.WithResolver(s.index)
	}
	return s
}

// Sync issues one remote call per record of ev and returns without waiting
// for them. A failing record is logged and never stops the others. patcher
// receives the id swap of every successful add and may be nil.
func (s *Synchronizer) Sync(ctx context.Context, ev model.SyncEvent, patcher StorePatcher) (*Batch, error) {
	store := ev.Store.ID
	kind := store.Kind()
	if kind == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, store)
	}

	// Issued calls are not aborted when the caller goes away.
	ctx = context.WithoutCancel(ctx)
	b := &Batch{}
	logCtx := s.log.WithField("store", store).WithField("action", ev.Action)

	switch ev.Action {
	case model.ActionDataset:
		logCtx.Debug("Ignoring dataset change.")
	case model.ActionAdd:
		s.add(ctx, b, store, kind, ev.Records, patcher)
	case model.ActionUpdate:
		s.update(ctx, b, store, kind, ev.Records)
	case model.ActionRemove:
		s.remove(ctx, b, store, kind, ev.Records)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, ev.Action)
	}
	return b, nil
}

func (s *Synchronizer) add(ctx context.Context, b *Batch, store model.StoreID, kind model.Kind, records []model.SyncRecord, patcher StorePatcher) {
	entitySet := s.mapper.EntitySet(kind)
	for _, rec := range records {
		phantomID := rec.Data.ID()
		payload := s.mapper.ToWire(kind, rec.Data)
		s.dispatch(b, func() Result {
			res := Result{Store: store, Action: model.ActionAdd, ID: phantomID}
			created, err := s.api.CreateRecord(ctx, entitySet, payload)
			if err != nil {
				res.Err = err
				return res
			}
			res.ServerID = created.ID
			if s.index != nil && phantomID != "" {
				s.index.Set(phantomID, created.ID)
				s.log.WithField("indexed", s.index.Len()).Debug("Recorded phantom id.")
			}
			if patcher != nil {
				cs := model.Changeset{Updated: []model.IDPatch{{PhantomID: phantomID, ID: created.ID}}}
				if err := patcher.ApplyChangeset(store, cs); err != nil {
					s.log.WithField("store", store).WithField("id", phantomID).WithError(err).
						Warn("Failed to apply id changeset to store.")
				}
			}
			return res
		})
	}
}

func (s *Synchronizer) update(ctx context.Context, b *Batch, store model.StoreID, kind model.Kind, records []model.SyncRecord) {
	entitySet := s.mapper.EntitySet(kind)
	for _, rec := range records {
		id := rec.Data.ID()
		if model.IsPhantomID(id) {
			// not persisted yet; its add is in flight or failed
			b.add(Result{Store: store, Action: model.ActionUpdate, ID: id, Skipped: true})
			continue
		}
		payload := s.mapper.ToWire(kind, rec.Data)
		s.dispatch(b, func() Result {
			return Result{
				Store:  store,
				Action: model.ActionUpdate,
				ID:     id,
				Err:    s.api.UpdateRecord(ctx, entitySet, id, payload),
			}
		})
	}
}

// remove checks only the first record: a batch led by a phantom record is
// dropped whole.
func (s *Synchronizer) remove(ctx context.Context, b *Batch, store model.StoreID, kind model.Kind, records []model.SyncRecord) {
	if len(records) == 0 {
		return
	}
	if records[0].Data.IsPhantom() {
		s.log.WithField("store", store).WithField("records", len(records)).Debug("Skipping removal of unsaved records.")
		for _, rec := range records {
			b.add(Result{Store: store, Action: model.ActionRemove, ID: rec.Data.ID(), Skipped: true})
		}
		return
	}
	entitySet := s.mapper.EntitySet(kind)
	for _, rec := range records {
		id := rec.Data.ID()
		s.dispatch(b, func() Result {
			err := s.api.DeleteRecord(ctx, entitySet, id)
			if err == nil && s.index != nil {
				s.index.Remove(id)
			}
			return Result{Store: store, Action: model.ActionRemove, ID: id, Err: err}
		})
	}
}

// dispatch runs call on its own goroutine, waiting for a pool slot inside
// the goroutine so the caller never blocks.
func (s *Synchronizer) dispatch(b *Batch, call func() Result) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if s.sem != nil {
			s.sem <- struct{}{}
			defer func() { <-s.sem }()
		}

		res := call()
		logCtx := s.log.WithField("store", res.Store).WithField("action", res.Action).WithField("id", res.ID)
		if res.Err != nil {
			logCtx.WithError(res.Err).Error("Failed to sync record.")
		} else {
			logCtx.WithField("server_id", res.ServerID).Debug("Synced record.")
		}
		b.add(res)
	}()
}
