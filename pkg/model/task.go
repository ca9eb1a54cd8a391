package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Kind identifies which collection a record belongs to.
type Kind string

const (
	KindTask       Kind = "task"
	KindDependency Kind = "dependency"
)

// PhantomPrefix marks identifiers the widget generated for records the data
// service has not confirmed yet.
const PhantomPrefix = "_generated"

// Record is a task or dependency in the widget's native shape. Keys are the
// widget's field names. A missing key and a nil value are different things:
// the first was never set, the second was explicitly cleared.
type Record map[string]any

// Entity is a record in the data service's wire shape (prefixed columns).
type Entity map[string]any

// Task field names.
const (
	FieldID                     = "id"
	FieldName                   = "name"
	FieldStartDate              = "startDate"
	FieldEndDate                = "endDate"
	FieldEffort                 = "effort"
	FieldEffortUnit             = "effortUnit"
	FieldDuration               = "duration"
	FieldDurationUnit           = "durationUnit"
	FieldPercentDone            = "percentDone"
	FieldSchedulingMode         = "schedulingMode"
	FieldNote                   = "note"
	FieldConstraintType         = "constraintType"
	FieldConstraintDate         = "constraintDate"
	FieldManuallyScheduled      = "manuallyScheduled"
	FieldUnscheduled            = "unscheduled"
	FieldIgnoreResourceCalendar = "ignoreResourceCalendar"
	FieldEffortDriven           = "effortDriven"
	FieldInactive               = "inactive"
	FieldCls                    = "cls"
	FieldIconCls                = "iconCls"
	FieldColor                  = "color"
	FieldParentIndex            = "parentIndex"
	FieldExpanded               = "expanded"
	FieldCalendar               = "calendar"
	FieldDeadline               = "deadline"
	FieldDirection              = "direction"
	FieldIndex                  = "index"
)

// Dependency field names. FieldID and FieldCls are shared with tasks.
const (
	FieldType     = "type"
	FieldLag      = "lag"
	FieldLagUnit  = "lagUnit"
	FieldActive   = "active"
	FieldFrom     = "from"
	FieldTo       = "to"
	FieldFromSide = "fromSide"
	FieldToSide   = "toSide"
)

// ID returns the record identifier as a string, or "" when it has none.
func (r Record) ID() string {
	return idString(r[FieldID])
}

// IsPhantom reports whether the record still carries a widget-generated id.
func (r Record) IsPhantom() bool {
	return IsPhantomID(r.ID())
}

// IsPhantomID reports whether id is a widget-generated placeholder.
func IsPhantomID(id string) bool {
	return strings.HasPrefix(id, PhantomPrefix)
}

// String returns the value stored under key formatted as an identifier.
func (r Record) String(key string) string {
	return idString(r[key])
}

func idString(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	case int:
		return strconv.Itoa(id)
	case int64:
		return strconv.FormatInt(id, 10)
	case json.Number:
		return id.String()
	default:
		return ""
	}
}

// Dataset is what the widget is bound to on first render.
type Dataset struct {
	Tasks        []Record `json:"tasks"`
	Dependencies []Record `json:"dependencies"`
}
