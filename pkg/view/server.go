package view

import (
	"errors"
	"html/template"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/harrisonrobin/ganttbridge/pkg/config"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
	"github.com/harrisonrobin/ganttbridge/pkg/syncer"
)

const (
	pageTitle = "Gantt"
	changeURL = "/api/change"
)

type rows struct {
	Rows []model.Record `json:"rows"`
}

type loadResponse struct {
	Success      bool `json:"success"`
	Tasks        rows `json:"tasks"`
	Dependencies rows `json:"dependencies"`
}

// Failure is a record whose remote call failed.
type Failure struct {
	Store  model.StoreID `json:"store"`
	Action model.Action  `json:"action"`
	ID     string        `json:"id"`
	Error  string        `json:"error"`
}

type changeResponse struct {
	Success    bool                              `json:"success"`
	Changesets map[model.StoreID]model.Changeset `json:"changesets"`
	Failures   []Failure                         `json:"failures"`
	Skipped    []string                          `json:"skipped,omitempty"`
}

type pageData struct {
	Title     string
	ScriptURL string
	StyleURL  string
	ChangeURL string
	Gantt     config.Gantt
	Data      *model.Dataset
}

// Router returns the HTTP handler for the page and its API.
func (c *Component) Router() *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Logger(c.log), gin.Recovery())
	r.SetHTMLTemplate(template.Must(template.New("").ParseFS(assets, "templates/*.html")))

	r.GET("/", c.handleIndex)

	api := r.Group("/api")
	{
		api.GET("/config", c.handleConfig)
		api.GET("/load", c.handleLoad)
		api.POST("/change", c.handleChange)
		api.POST("/sync", c.handleSync)
	}
	return r
}

func (c *Component) handleIndex(ctx *gin.Context) {
	data := c.Data()
	page := pageData{
		Title:     pageTitle,
		ScriptURL: c.opts.ScriptURL,
		StyleURL:  c.opts.StyleURL,
		ChangeURL: changeURL,
		Gantt:     c.opts.Gantt,
		Data:      data,
	}
	if data == nil {
		ctx.HTML(http.StatusOK, "loading.html", page)
		return
	}
	ctx.HTML(http.StatusOK, "gantt.html", page)
}

func (c *Component) handleConfig(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, c.opts.Gantt)
}

func (c *Component) handleLoad(ctx *gin.Context) {
	data := c.Data()
	if data == nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "loading"})
		return
	}
	ctx.JSON(http.StatusOK, loadResponse{
		Success:      true,
		Tasks:        rows{Rows: nonNil(data.Tasks)},
		Dependencies: rows{Rows: nonNil(data.Dependencies)},
	})
}

// handleChange takes one dataChange notification from the page, waits for
// its remote calls and answers with the id swaps to apply.
func (c *Component) handleChange(ctx *gin.Context) {
	var ev model.SyncEvent
	if err := ctx.ShouldBindJSON(&ev); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	collector := newChangesetCollector()
	batch, err := c.syncer.Sync(ctx.Request.Context(), ev, collector)
	if err != nil {
		c.abortSync(ctx, err)
		return
	}

	resp := changeResponse{Failures: []Failure{}}
	for _, r := range batch.Wait() {
		switch {
		case r.Err != nil:
			resp.Failures = append(resp.Failures, failure(r))
		case r.Skipped:
			resp.Skipped = append(resp.Skipped, r.ID)
		}
	}
	resp.Success = len(resp.Failures) == 0
	resp.Changesets = collector.changesets()
	ctx.JSON(http.StatusOK, resp)
}

func (c *Component) abortSync(ctx *gin.Context, err error) {
	_ = ctx.Error(err)
	status := http.StatusInternalServerError
	if errors.Is(err, syncer.ErrUnknownStore) || errors.Is(err, syncer.ErrUnknownAction) {
		status = http.StatusBadRequest
	}
	ctx.JSON(status, gin.H{"success": false, "message": err.Error()})
}

func failure(r syncer.Result) Failure {
	return Failure{Store: r.Store, Action: r.Action, ID: r.ID, Error: r.Err.Error()}
}

func nonNil(records []model.Record) []model.Record {
	if records == nil {
		return []model.Record{}
	}
	return records
}

// changesetCollector gathers the id swaps of one request per store.
type changesetCollector struct {
	mu   sync.Mutex
	sets map[model.StoreID]model.Changeset
}

func newChangesetCollector() *changesetCollector {
	return &changesetCollector{sets: make(map[model.StoreID]model.Changeset)}
}

func (p *changesetCollector) ApplyChangeset(store model.StoreID, cs model.Changeset) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := p.sets[store]
	set.Updated = append(set.Updated, cs.Updated...)
	p.sets[store] = set
	return nil
}

func (p *changesetCollector) changesets() map[model.StoreID]model.Changeset {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[model.StoreID]model.Changeset, len(p.sets))
	for k, v := range p.sets {
		out[k] = v
	}
	return out
}
