package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/harrisonrobin/ganttbridge/pkg/dataverse/dataversetest"
	"github.com/harrisonrobin/ganttbridge/pkg/index"
	"github.com/harrisonrobin/ganttbridge/pkg/mapping"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper() *mapping.Mapper {
	return mapping.NewMapper(mapping.Schema{
		Prefix:              "crXXX_",
		TaskTable:           "gantttask",
		DependencyTable:     "ganttdependency",
		TaskEntitySet:       "crXXX_gantttasks",
		DependencyEntitySet: "crXXX_ganttdependencies",
	})
}

type recordingPatcher struct {
	mu      sync.Mutex
	patches map[model.StoreID][]model.IDPatch
}

func (p *recordingPatcher) ApplyChangeset(store model.StoreID, cs model.Changeset) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.patches == nil {
		p.patches = map[model.StoreID][]model.IDPatch{}
	}
	p.patches[store] = append(p.patches[store], cs.Updated...)
	return nil
}

func event(store model.StoreID, action model.Action, records ...model.Record) model.SyncEvent {
	ev := model.SyncEvent{Store: model.StoreRef{ID: store}, Action: action}
	for _, r := range records {
		ev.Records = append(ev.Records, model.SyncRecord{Data: r})
	}
	return ev
}

func newSynchronizer(fake *dataversetest.Fake, opts ...Option) *Synchronizer {
	logger, _ := test.NewNullLogger()
	return New(fake, testMapper(), append([]Option{WithLogger(logger)}, opts...)...)
}

func TestAddTaskPatchesStore(t *testing.T) {
	fake := dataversetest.New()
	patcher := &recordingPatcher{}
	s := newSynchronizer(fake)

	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionAdd,
		model.Record{"id": "temp1", "name": "A", "percentDone": float64(0)}), patcher)
	require.NoError(t, err)
	results := b.Wait()

	creates := fake.Calls("create")
	require.Len(t, creates, 1)
	assert.Equal(t, "crXXX_gantttasks", creates[0].EntitySet)
	assert.Equal(t, "A", creates[0].Payload["crXXX_name"])
	assert.Equal(t, float64(0), creates[0].Payload["crXXX_percentdone"])
	assert.NotContains(t, creates[0].Payload, "crXXX_gantttaskid")

	assert.Equal(t, []model.IDPatch{{PhantomID: "temp1", ID: "server1"}}, patcher.patches[model.StoreTasks])
	require.Len(t, results, 1)
	assert.Equal(t, "server1", results[0].ServerID)
	assert.NoError(t, b.Err())
}

func TestAddFailureDoesNotAbortBatch(t *testing.T) {
	fake := dataversetest.New()
	fake.FailOn = func(c dataversetest.Call) error {
		if c.Method == "create" && c.Payload["crXXX_name"] == "B" {
			return errors.New("create rejected")
		}
		return nil
	}
	patcher := &recordingPatcher{}
	s := newSynchronizer(fake)

	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionAdd,
		model.Record{"id": "_generated1", "name": "A"},
		model.Record{"id": "_generated2", "name": "B"},
		model.Record{"id": "_generated3", "name": "C"},
	), patcher)
	require.NoError(t, err)

	results := b.Wait()
	assert.Len(t, fake.Calls("create"), 3)
	assert.Len(t, results, 3)
	assert.Len(t, patcher.patches[model.StoreTasks], 2)
	assert.ErrorContains(t, b.Err(), "create rejected")
}

func TestUpdateSkipsPhantomRecords(t *testing.T) {
	fake := dataversetest.New()
	s := newSynchronizer(fake)

	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionUpdate,
		model.Record{"id": "_generated7", "name": "new"},
		model.Record{"id": "t1", "name": "renamed", "manuallyScheduled": true},
	), nil)
	require.NoError(t, err)
	results := b.Wait()

	updates := fake.Calls("update")
	require.Len(t, updates, 1)
	assert.Equal(t, "t1", updates[0].ID)
	assert.Equal(t, "renamed", updates[0].Payload["crXXX_name"])
	assert.Equal(t, float64(1), updates[0].Payload["crXXX_manuallyscheduled"])

	var skipped int
	for _, r := range results {
		if r.Skipped {
			skipped++
		}
	}
	assert.Equal(t, 1, skipped)
}

func TestRemoveSkipsBatchLedByPhantom(t *testing.T) {
	fake := dataversetest.New()
	s := newSynchronizer(fake)

	b, err := s.Sync(context.Background(), event(model.StoreDependencies, model.ActionRemove,
		model.Record{"id": "_generated1"},
		model.Record{"id": "d2"},
		model.Record{"id": "d3"},
	), nil)
	require.NoError(t, err)
	b.Wait()
	assert.Empty(t, fake.Calls("delete"))
}

func TestRemoveDeletesEachRecord(t *testing.T) {
	fake := dataversetest.New()
	fake.FailOn = func(c dataversetest.Call) error {
		if c.ID == "d2" {
			return errors.New("not found")
		}
		return nil
	}
	s := newSynchronizer(fake)

	b, err := s.Sync(context.Background(), event(model.StoreDependencies, model.ActionRemove,
		model.Record{"id": "d1"},
		model.Record{"id": "d2"},
		model.Record{"id": "d3"},
	), nil)
	require.NoError(t, err)
	b.Wait()

	deletes := fake.Calls("delete")
	require.Len(t, deletes, 3)
	ids := []string{deletes[0].ID, deletes[1].ID, deletes[2].ID}
	assert.ElementsMatch(t, []string{"d1", "d2", "d3"}, ids)
	assert.Equal(t, "crXXX_ganttdependencies", deletes[0].EntitySet)
	assert.ErrorContains(t, b.Err(), "not found")
}

func TestRemoveEmptyBatch(t *testing.T) {
	fake := dataversetest.New()
	b, err := newSynchronizer(fake).Sync(context.Background(), event(model.StoreTasks, model.ActionRemove), nil)
	require.NoError(t, err)
	assert.Empty(t, b.Wait())
	assert.Empty(t, fake.Calls(""))
}

func TestDatasetIsIgnored(t *testing.T) {
	fake := dataversetest.New()
	b, err := newSynchronizer(fake).Sync(context.Background(), event(model.StoreTasks, model.ActionDataset,
		model.Record{"id": "t1"}), nil)
	require.NoError(t, err)
	assert.Empty(t, b.Wait())
	assert.Empty(t, fake.Calls(""))
}

func TestUnknownStoreAndAction(t *testing.T) {
	s := newSynchronizer(dataversetest.New())

	_, err := s.Sync(context.Background(), event("resources", model.ActionAdd), nil)
	assert.ErrorIs(t, err, ErrUnknownStore)

	_, err = s.Sync(context.Background(), event(model.StoreTasks, "move"), nil)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestDependencyAddResolvesCreatedTask(t *testing.T) {
	fake := dataversetest.New()
	idx := index.NewPhantomIndex()
	patcher := &recordingPatcher{}
	s := newSynchronizer(fake, WithIndex(idx))

	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionAdd,
		model.Record{"id": "_generated1", "name": "A"}), patcher)
	require.NoError(t, err)
	b.Wait()
	assert.Equal(t, "server1", idx.Get("_generated1"))

	b, err = s.Sync(context.Background(), event(model.StoreDependencies, model.ActionAdd,
		model.Record{"id": "_generated2", "from": "_generated1", "to": "t2", "type": float64(2)}), patcher)
	require.NoError(t, err)
	b.Wait()

	creates := fake.Calls("create")
	require.Len(t, creates, 2)
	dep := creates[1]
	assert.Equal(t, "crXXX_ganttdependencies", dep.EntitySet)
	assert.Equal(t, "/crXXX_gantttasks(server1)", dep.Payload["crXXX_from@odata.bind"])
	assert.Equal(t, "/crXXX_gantttasks(t2)", dep.Payload["crXXX_to@odata.bind"])
	assert.Equal(t, []model.IDPatch{{PhantomID: "_generated2", ID: "server2"}}, patcher.patches[model.StoreDependencies])
}

func TestRemoveForgetsDeletedTask(t *testing.T) {
	fake := dataversetest.New()
	fake.FailOn = func(c dataversetest.Call) error {
		if c.Method == "delete" && c.ID == "server2" {
			return errors.New("locked")
		}
		return nil
	}
	idx := index.NewPhantomIndex()
	s := newSynchronizer(fake, WithIndex(idx))

	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionAdd,
		model.Record{"id": "_generated1", "name": "A"},
		model.Record{"id": "_generated2", "name": "B"}), nil)
	require.NoError(t, err)
	b.Wait()
	require.Equal(t, 2, idx.Len())

	b, err = s.Sync(context.Background(), event(model.StoreTasks, model.ActionRemove,
		model.Record{"id": "server1"},
		model.Record{"id": "server2"}), nil)
	require.NoError(t, err)
	assert.Error(t, b.Err())

	// the failed delete keeps its mapping
	assert.Equal(t, 1, idx.Len())
	remaining := []string{idx.Get("_generated1"), idx.Get("_generated2")}
	assert.Contains(t, remaining, "server2")
	assert.NotContains(t, remaining, "server1")
}

func TestBoundedDispatchCompletesEveryCall(t *testing.T) {
	fake := dataversetest.New()
	s := newSynchronizer(fake, WithMaxInFlight(1))

	var records []model.Record
	for _, id := range []string{"t1", "t2", "t3", "t4", "t5"} {
		records = append(records, model.Record{"id": id, "name": id})
	}
	b, err := s.Sync(context.Background(), event(model.StoreTasks, model.ActionUpdate, records...), nil)
	require.NoError(t, err)
	assert.Len(t, b.Wait(), 5)
	assert.Len(t, fake.Calls("update"), 5)
}

func TestCallsOutliveCallerContext(t *testing.T) {
	fake := dataversetest.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b, err := newSynchronizer(fake).Sync(ctx, event(model.StoreTasks, model.ActionUpdate,
		model.Record{"id": "t1", "name": "A"}), nil)
	require.NoError(t, err)
	b.Wait()
	assert.Len(t, fake.Calls("update"), 1)
}
