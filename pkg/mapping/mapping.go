// Package mapping converts records between the data service's prefixed
// column layout and the field names the Gantt widget uses.
package mapping

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/harrisonrobin/ganttbridge/pkg/dataverse"
	"github.com/harrisonrobin/ganttbridge/pkg/model"
)

// Coercion is applied to a value on its way to the data service.
type Coercion int

const (
	AsIs Coercion = iota
	// Number sends booleans as 0/1 and numeric strings as numbers.
	Number
)

// Field maps one native field to one wire column. Wire is the column name
// without the publisher prefix.
type Field struct {
	Native string
	Wire   string
	Coerce Coercion
	// Omit drops the field from writes when it is null or absent so the
	// service keeps its own default.
	Omit bool
	// OmitEmpty also drops empty strings.
	OmitEmpty bool
	// Lookup columns arrive as an expanded related record and are written
	// back through a relationship binding.
	Lookup bool
}

var taskFields = []Field{
	{Native: model.FieldName, Wire: "name"},
	{Native: model.FieldStartDate, Wire: "startdate"},
	{Native: model.FieldEndDate, Wire: "enddate"},
	{Native: model.FieldEffort, Wire: "effort"},
	{Native: model.FieldEffortUnit, Wire: "effortunit"},
	{Native: model.FieldDuration, Wire: "duration"},
	{Native: model.FieldDurationUnit, Wire: "durationunit"},
	{Native: model.FieldPercentDone, Wire: "percentdone"},
	{Native: model.FieldSchedulingMode, Wire: "schedulingmode"},
	{Native: model.FieldNote, Wire: "note", Omit: true},
	{Native: model.FieldConstraintType, Wire: "constrainttype"},
	{Native: model.FieldConstraintDate, Wire: "constraintdate"},
	{Native: model.FieldManuallyScheduled, Wire: "manuallyscheduled", Coerce: Number},
	{Native: model.FieldUnscheduled, Wire: "unscheduled", Coerce: Number},
	{Native: model.FieldIgnoreResourceCalendar, Wire: "ignoreresourcecalendar", Coerce: Number, Omit: true},
	{Native: model.FieldEffortDriven, Wire: "effortdriven", Coerce: Number},
	{Native: model.FieldInactive, Wire: "inactive", Coerce: Number},
	{Native: model.FieldCls, Wire: "cls"},
	{Native: model.FieldIconCls, Wire: "iconcls", Omit: true},
	{Native: model.FieldColor, Wire: "color", Omit: true},
	{Native: model.FieldParentIndex, Wire: "parentindex"},
	{Native: model.FieldExpanded, Wire: "expanded", Coerce: Number, Omit: true},
	{Native: model.FieldCalendar, Wire: "calendar", Coerce: Number, Omit: true},
	{Native: model.FieldDeadline, Wire: "deadline", Omit: true},
	{Native: model.FieldDirection, Wire: "direction"},
	{Native: model.FieldIndex, Wire: "index", Omit: true},
}

var dependencyFields = []Field{
	{Native: model.FieldType, Wire: "type", Coerce: Number},
	{Native: model.FieldCls, Wire: "cls", Omit: true, OmitEmpty: true},
	{Native: model.FieldLag, Wire: "lag"},
	// case sensitive on the service side
	{Native: model.FieldLagUnit, Wire: "lagunit"},
	{Native: model.FieldActive, Wire: "active", Coerce: Number},
	{Native: model.FieldFrom, Wire: "from", Lookup: true},
	{Native: model.FieldTo, Wire: "to", Lookup: true},
	{Native: model.FieldFromSide, Wire: "fromside", Omit: true},
	{Native: model.FieldToSide, Wire: "toside", Omit: true},
}

// Schema names the tables the widget is bound to.
type Schema struct {
	// Prefix is the publisher customization prefix, e.g. "cr3c6_".
	Prefix          string
	TaskTable       string
	DependencyTable string
	// Entity set (collection) names used in URLs and bindings.
	TaskEntitySet       string
	DependencyEntitySet string
}

// Resolver maps a phantom task id to the id the service assigned, returning
// the input unchanged when it does not know it.
type Resolver interface {
	Resolve(id string) string
}

// Mapper converts records for one Schema.
type Mapper struct {
	schema   Schema
	resolver Resolver
}

// NewMapper returns a Mapper for schema.
func NewMapper(schema Schema) *Mapper {
	return &Mapper{schema: schema}
}

// WithResolver returns a copy of m that resolves dependency endpoints
// through r before binding them.
func (m *Mapper) WithResolver(r Resolver) *Mapper {
	c := *m
	c.resolver = r
	return &c
}

// Column returns the prefixed wire column name.
func (m *Mapper) Column(name string) string {
	return m.schema.Prefix + name
}

// IDColumn returns the primary key column of kind's table.
func (m *Mapper) IDColumn(kind model.Kind) string {
	switch kind {
	case model.KindTask:
		return m.Column(m.schema.TaskTable + "id")
	case model.KindDependency:
		return m.Column(m.schema.DependencyTable + "id")
	}
	return ""
}

// EntitySet returns the collection name of kind's table.
func (m *Mapper) EntitySet(kind model.Kind) string {
	switch kind {
	case model.KindTask:
		return m.schema.TaskEntitySet
	case model.KindDependency:
		return m.schema.DependencyEntitySet
	}
	return ""
}

// Fields returns the field table for kind.
func Fields(kind model.Kind) []Field {
	switch kind {
	case model.KindTask:
		return taskFields
	case model.KindDependency:
		return dependencyFields
	}
	return nil
}

// ToNative renames the prefixed columns of each entity to widget field
// names. Columns missing from an entity stay missing in the record.
func (m *Mapper) ToNative(kind model.Kind, entities []model.Entity) []model.Record {
	records := make([]model.Record, 0, len(entities))
	for _, e := range entities {
		records = append(records, m.toNative(kind, e))
	}
	return records
}

func (m *Mapper) toNative(kind model.Kind, e model.Entity) model.Record {
	rec := model.Record{}
	if id, ok := e[m.IDColumn(kind)]; ok {
		rec[model.FieldID] = id
	}
	taskID := m.IDColumn(model.KindTask)
	for _, f := range Fields(kind) {
		v, ok := e[m.Column(f.Wire)]
		if !ok {
			continue
		}
		if f.Lookup {
			related, isObject := v.(map[string]any)
			if !isObject {
				continue
			}
			if v, ok = related[taskID]; !ok {
				continue
			}
		}
		rec[f.Native] = v
	}
	return rec
}

// ToWire builds the create/update payload for rec. The identifier is never
// part of the payload.
func (m *Mapper) ToWire(kind model.Kind, rec model.Record) model.Entity {
	out := model.Entity{}
	for _, f := range Fields(kind) {
		v, ok := rec[f.Native]
		if !ok {
			continue
		}
		if f.Lookup {
			if v == nil {
				continue
			}
			id := rec.String(f.Native)
			if m.resolver != nil {
				id = m.resolver.Resolve(id)
			}
			out[dataverse.BindKey(m.Column(f.Wire))] = dataverse.EntitySetPath(m.schema.TaskEntitySet, id)
			continue
		}
		if v == nil {
			if f.Omit {
				continue
			}
			out[m.Column(f.Wire)] = nil
			continue
		}
		if s, isString := v.(string); isString && s == "" && f.OmitEmpty {
			continue
		}
		if f.Coerce == Number {
			v = toNumber(v)
		}
		out[m.Column(f.Wire)] = v
	}
	return out
}

// toNumber leaves values it cannot interpret untouched.
func toNumber(v any) any {
	switch n := v.(type) {
	case bool:
		if n {
			return float64(1)
		}
		return float64(0)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return v
}
