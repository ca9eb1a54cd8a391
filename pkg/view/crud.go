package view

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
)

const keyPhantomID = "$PhantomId"

// crudChanges is one store's part of a CrudManager sync request.
type crudChanges struct {
	Added   []model.Record `json:"added"`
	Updated []model.Record `json:"updated"`
	Removed []model.Record `json:"removed"`
}

type crudSyncRequest struct {
	Type         string       `json:"type"`
	RequestID    any          `json:"requestId"`
	Tasks        *crudChanges `json:"tasks"`
	Dependencies *crudChanges `json:"dependencies"`
}

type crudStoreResponse struct {
	Rows    []model.IDPatch `json:"rows,omitempty"`
	Removed []model.Record  `json:"removed,omitempty"`
}

type crudSyncResponse struct {
	Success      bool               `json:"success"`
	RequestID    any                `json:"requestId"`
	Tasks        *crudStoreResponse `json:"tasks,omitempty"`
	Dependencies *crudStoreResponse `json:"dependencies,omitempty"`
	Failures     []Failure          `json:"failures,omitempty"`
	Message      string             `json:"message,omitempty"`
}

type crudStep struct {
	store   model.StoreID
	action  model.Action
	records []model.Record
}

// crudSteps orders the request so task creates finish before dependency
// creates bind to them, and task deletes run last.
func crudSteps(req crudSyncRequest) []crudStep {
	tasks, deps := req.Tasks, req.Dependencies
	if tasks == nil {
		tasks = &crudChanges{}
	}
	if deps == nil {
		deps = &crudChanges{}
	}
	return []crudStep{
		{model.StoreTasks, model.ActionAdd, tasks.Added},
		{model.StoreTasks, model.ActionUpdate, tasks.Updated},
		{model.StoreDependencies, model.ActionAdd, deps.Added},
		{model.StoreDependencies, model.ActionUpdate, deps.Updated},
		{model.StoreDependencies, model.ActionRemove, deps.Removed},
		{model.StoreTasks, model.ActionRemove, tasks.Removed},
	}
}

// handleSync serves the widget's CrudManager sync protocol on top of the
// same synchronizer the dataChange endpoint uses.
func (c *Component) handleSync(ctx *gin.Context) {
	var req crudSyncRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	resp := crudSyncResponse{RequestID: req.RequestID}
	stores := map[model.StoreID]*crudStoreResponse{}
	collector := newChangesetCollector()

	for _, step := range crudSteps(req) {
		if len(step.records) == 0 {
			continue
		}
		ev := model.SyncEvent{Store: model.StoreRef{ID: step.store}, Action: step.action}
		for _, rec := range step.records {
			if step.action == model.ActionAdd {
				rec = withPhantomID(rec)
			}
			ev.Records = append(ev.Records, model.SyncRecord{Data: rec})
		}

		batch, err := c.syncer.Sync(ctx.Request.Context(), ev, collector)
		if err != nil {
			c.abortSync(ctx, err)
			return
		}
		out := stores[step.store]
		if out == nil {
			out = &crudStoreResponse{}
			stores[step.store] = out
		}
		for _, r := range batch.Wait() {
			switch {
			case r.Err != nil:
				resp.Failures = append(resp.Failures, failure(r))
			case r.Action == model.ActionRemove && !r.Skipped:
				out.Removed = append(out.Removed, model.Record{model.FieldID: r.ID})
			}
		}
	}

	for store, cs := range collector.changesets() {
		out := stores[store]
		if out == nil {
			out = &crudStoreResponse{}
			stores[store] = out
		}
		out.Rows = append(out.Rows, cs.Updated...)
	}
	resp.Tasks = stores[model.StoreTasks]
	resp.Dependencies = stores[model.StoreDependencies]
	resp.Success = len(resp.Failures) == 0
	if !resp.Success {
		resp.Message = "some records failed to sync"
	}
	ctx.JSON(http.StatusOK, resp)
}

// withPhantomID copies the CrudManager's $PhantomId into the id field the
// synchronizer keys creates by.
func withPhantomID(rec model.Record) model.Record {
	if rec.ID() != "" {
		return rec
	}
	phantom, ok := rec[keyPhantomID]
	if !ok {
		return rec
	}
	out := make(model.Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	out[model.FieldID] = phantom
	return out
}
