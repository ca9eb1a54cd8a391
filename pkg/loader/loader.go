// Package loader performs the initial fetch of tasks and dependencies.
package loader

import (
	"context"
	"errors"

	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/mapping"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Loader struct {
	api    dataverse.WebAPI
	mapper *mapping.Mapper
	log    log.FieldLogger
}

type Option func(*Loader)

func WithLogger(l log.FieldLogger) Option {
	return func(ld *Loader) { ld.log = l }
}

func New(api dataverse.WebAPI, m *mapping.Mapper, opts ...Option) *Loader {
	l := &Loader{api: api, mapper: m, log: log.StandardLogger()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TaskQuery orders tasks by their explicit sort index.
func (l *Loader) TaskQuery() string {
	return dataverse.Query{
		OrderBy: []string{dataverse.Asc(l.mapper.Column("index"))},
	}.String()
}

// DependencyQuery projects the dependency columns and expands both endpoints
// down to the bare task id.
func (l *Loader) DependencyQuery() string {
	c := l.mapper.Column
	taskID := l.mapper.IDColumn(model.KindTask)
	return dataverse.Query{
		Select: []string{
			l.mapper.IDColumn(model.KindDependency),
			c("type"), c("lag"), c("lagunit"), c("active"), c("cls"),
			c("fromside"), c("toside"), c("from"), c("to"),
		},
		Expand: []dataverse.Expand{
			{Navigation: c("from"), Select: []string{taskID}},
			{Navigation: c("to"), Select: []string{taskID}},
		},
	}.String()
}

// Load runs both reads concurrently and returns the native dataset. It
// returns (nil, nil) when there is no data service or a read came back empty;
// the caller keeps showing its loading state in that case.
func (l *Loader) Load(ctx context.Context) (*model.Dataset, error) {
	if l.api == nil {
		return nil, nil
	}

	var tasks, dependencies *dataverse.RetrieveMultipleResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = l.api.RetrieveMultipleRecords(gctx, l.mapper.EntitySet(model.KindTask), l.TaskQuery())
		return err
	})
	g.Go(func() error {
		var err error
		dependencies, err = l.api.RetrieveMultipleRecords(gctx, l.mapper.EntitySet(model.KindDependency), l.DependencyQuery())
		return err
	})

	if err := g.Wait(); err != nil {
		if errors.Is(err, dataverse.ErrNotImplemented) {
			l.log.WithError(err).Warn("Data service is not implemented in this environment; fixture data must be supplied.")
		} else {
			l.log.WithError(err).Error("Failed to fetch gantt records.")
		}
		return nil, err
	}
	if tasks == nil || dependencies == nil {
		return nil, nil
	}

	ds := &model.Dataset{
		Tasks:        l.mapper.ToNative(model.KindTask, tasks.Entities),
		Dependencies: l.mapper.ToNative(model.KindDependency, dependencies.Entities),
	}
	l.log.WithField("tasks", len(ds.Tasks)).WithField("dependencies", len(ds.Dependencies)).Info("Loaded gantt records.")
	return ds, nil
}
