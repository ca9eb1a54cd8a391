// Package view serves the Gantt widget: a loading placeholder until the
// initial dataset arrives, then the widget page, plus the endpoints the page
// reports its local changes to.
package view

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/harrisonrobin/ganttbridge/pkg/config"
	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
	"github.com/harrisonrobin/ganttbridge/pkg/syncer"
	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html fixtures.json
var assets embed.FS

// Loader fetches the initial dataset.
type Loader interface {
	Load(ctx context.Context) (*model.Dataset, error)
}

// Syncer forwards one change notification to the data service.
type Syncer interface {
	Sync(ctx context.Context, ev model.SyncEvent, patcher syncer.StorePatcher) (*syncer.Batch, error)
}

type Options struct {
	Gantt     config.Gantt
	ScriptURL string
	StyleURL  string
	Logger    log.FieldLogger
	// Fixtures replaces the embedded development dataset.
	Fixtures *model.Dataset
}

type Component struct {
	loader Loader
	syncer Syncer
	opts   Options
	log    log.FieldLogger

	once    sync.Once
	mounted chan struct{}

	mu      sync.RWMutex
	data    *model.Dataset
	loadErr error
}

func NewComponent(l Loader, s Syncer, opts Options) *Component {
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}
	return &Component{
		loader:  l,
		syncer:  s,
		opts:    opts,
		log:     opts.Logger,
		mounted: make(chan struct{}),
	}
}

// Mount starts the initial load in the background. Only the first call has
// any effect; the dataset is never refreshed afterwards.
func (c *Component) Mount(ctx context.Context) {
	c.once.Do(func() {
		go func() {
			defer close(c.mounted)
			c.load(ctx)
		}()
	})
}

// Mounted is closed once the initial load has finished, successfully or not.
func (c *Component) Mounted() <-chan struct{} {
	return c.mounted
}

// Data returns the bound dataset, or nil while loading or after a failed load.
func (c *Component) Data() *model.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data
}

// Err returns the error of the initial load, if any.
func (c *Component) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadErr
}

func (c *Component) load(ctx context.Context) {
	ds, err := c.loader.Load(ctx)
	if errors.Is(err, dataverse.ErrNotImplemented) {
		ds, err = c.fixtures()
		if err == nil {
			c.log.WithField("tasks", len(ds.Tasks)).Info("Using fixture data.")
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		// The page stays on the placeholder; the loader has logged the cause.
		c.loadErr = err
		return
	}
	c.data = ds
}

func (c *Component) fixtures() (*model.Dataset, error) {
	if c.opts.Fixtures != nil {
		return c.opts.Fixtures, nil
	}
	return LoadFixtures()
}

// LoadFixtures decodes the embedded development dataset.
func LoadFixtures() (*model.Dataset, error) {
	b, err := assets.ReadFile("fixtures.json")
	if err != nil {
		return nil, err
	}
	var ds model.Dataset
	if err := json.NewDecoder(bytes.NewReader(b)).Decode(&ds); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return &ds, nil
}
