package mapping

import (
	"testing"

	"github.com/harrisonrobin/ganttbridge/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMapper() *Mapper {
	return NewMapper(Schema{
		Prefix:              "crXXX_",
		TaskTable:           "gantttask",
		DependencyTable:     "ganttdependency",
		TaskEntitySet:       "crXXX_gantttasks",
		DependencyEntitySet: "crXXX_ganttdependencies",
	})
}

func wireTask() model.Entity {
	return model.Entity{
		"crXXX_gantttaskid":            "11111111-0000-0000-0000-000000000001",
		"crXXX_name":                   "Design",
		"crXXX_startdate":              "2024-03-04T00:00:00Z",
		"crXXX_enddate":                "2024-03-08T00:00:00Z",
		"crXXX_effort":                 float64(40),
		"crXXX_effortunit":             "hour",
		"crXXX_duration":               float64(5),
		"crXXX_durationunit":           "day",
		"crXXX_percentdone":            float64(20),
		"crXXX_schedulingmode":         "Normal",
		"crXXX_note":                   "kickoff",
		"crXXX_constrainttype":         "startnoearlierthan",
		"crXXX_constraintdate":         "2024-03-04T00:00:00Z",
		"crXXX_manuallyscheduled":      float64(0),
		"crXXX_unscheduled":            float64(0),
		"crXXX_ignoreresourcecalendar": float64(1),
		"crXXX_effortdriven":           float64(1),
		"crXXX_inactive":               float64(0),
		"crXXX_cls":                    "important",
		"crXXX_iconcls":                "b-fa b-fa-flag",
		"crXXX_color":                  "red",
		"crXXX_parentindex":            float64(0),
		"crXXX_expanded":               float64(1),
		"crXXX_calendar":               float64(2),
		"crXXX_deadline":               "2024-03-15T00:00:00Z",
		"crXXX_direction":              "Forward",
		"crXXX_index":                  float64(3),
	}
}

func TestTaskToNative(t *testing.T) {
	records := testMapper().ToNative(model.KindTask, []model.Entity{wireTask()})
	require.Len(t, records, 1)

	r := records[0]
	assert.Equal(t, "11111111-0000-0000-0000-000000000001", r.ID())
	assert.Equal(t, "Design", r[model.FieldName])
	assert.Equal(t, float64(20), r[model.FieldPercentDone])
	assert.Equal(t, float64(3), r[model.FieldIndex])
	assert.Equal(t, "Forward", r[model.FieldDirection])
}

func TestTaskToNativeKeepsMissingAndNull(t *testing.T) {
	e := model.Entity{
		"crXXX_gantttaskid": "t1",
		"crXXX_name":        "A",
		"crXXX_note":        nil,
	}
	r := testMapper().ToNative(model.KindTask, []model.Entity{e})[0]

	v, ok := r[model.FieldNote]
	assert.True(t, ok)
	assert.Nil(t, v)

	_, ok = r[model.FieldColor]
	assert.False(t, ok, "absent column must stay absent")
}

func TestTaskRoundTrip(t *testing.T) {
	m := testMapper()
	in := wireTask()
	out := m.ToWire(model.KindTask, m.ToNative(model.KindTask, []model.Entity{in})[0])

	for k, v := range in {
		if k == "crXXX_gantttaskid" {
			assert.NotContains(t, out, k)
			continue
		}
		assert.Equal(t, v, out[k], k)
	}
	assert.Len(t, out, len(in)-1)
}

func TestTaskRoundTripOmitsNullOptionals(t *testing.T) {
	m := testMapper()
	in := wireTask()
	for _, k := range []string{"crXXX_note", "crXXX_iconcls", "crXXX_color", "crXXX_expanded", "crXXX_deadline", "crXXX_calendar", "crXXX_index", "crXXX_ignoreresourcecalendar"} {
		in[k] = nil
	}
	in["crXXX_cls"] = nil

	out := m.ToWire(model.KindTask, m.ToNative(model.KindTask, []model.Entity{in})[0])

	for _, k := range []string{"crXXX_note", "crXXX_iconcls", "crXXX_color", "crXXX_expanded", "crXXX_deadline", "crXXX_calendar", "crXXX_index", "crXXX_ignoreresourcecalendar"} {
		assert.NotContains(t, out, k)
	}
	v, ok := out["crXXX_cls"]
	assert.True(t, ok, "non-optional null is sent as null")
	assert.Nil(t, v)
}

func TestTaskToWireZeroIsNotOmitted(t *testing.T) {
	out := testMapper().ToWire(model.KindTask, model.Record{
		model.FieldID:          "t1",
		model.FieldPercentDone: float64(0),
		model.FieldIndex:       float64(0),
		model.FieldExpanded:    false,
	})
	assert.Equal(t, float64(0), out["crXXX_percentdone"])
	assert.Equal(t, float64(0), out["crXXX_index"])
	assert.Equal(t, float64(0), out["crXXX_expanded"])
}

func TestTaskToWireCoercesFlags(t *testing.T) {
	out := testMapper().ToWire(model.KindTask, model.Record{
		model.FieldManuallyScheduled:      true,
		model.FieldUnscheduled:            false,
		model.FieldEffortDriven:           "1",
		model.FieldInactive:               nil,
		model.FieldIgnoreResourceCalendar: true,
		model.FieldCalendar:               "7",
	})
	assert.Equal(t, float64(1), out["crXXX_manuallyscheduled"])
	assert.Equal(t, float64(0), out["crXXX_unscheduled"])
	assert.Equal(t, float64(1), out["crXXX_effortdriven"])
	assert.Equal(t, float64(1), out["crXXX_ignoreresourcecalendar"])
	assert.Equal(t, float64(7), out["crXXX_calendar"])

	v, ok := out["crXXX_inactive"]
	assert.True(t, ok)
	assert.Nil(t, v, "null flags are not coerced to 0")
	assert.NotContains(t, out, "crXXX_id")
}

func TestDependencyToNative(t *testing.T) {
	e := model.Entity{
		"crXXX_ganttdependencyid": "d1",
		"crXXX_type":              float64(2),
		"crXXX_lag":               float64(1),
		"crXXX_lagunit":           "day",
		"crXXX_active":            float64(1),
		"crXXX_fromside":          "end",
		"crXXX_from":              map[string]any{"crXXX_gantttaskid": "t1", "@odata.etag": "W/\"1\""},
		"crXXX_to":                map[string]any{"crXXX_gantttaskid": "t2"},
	}
	r := testMapper().ToNative(model.KindDependency, []model.Entity{e})[0]

	assert.Equal(t, "d1", r.ID())
	assert.Equal(t, "t1", r[model.FieldFrom])
	assert.Equal(t, "t2", r[model.FieldTo])
	assert.Equal(t, "end", r[model.FieldFromSide])
	assert.NotContains(t, r, model.FieldToSide)
	assert.NotContains(t, r, model.FieldCls)
}

func TestDependencyToNativeMissingLookup(t *testing.T) {
	e := model.Entity{
		"crXXX_ganttdependencyid": "d1",
		"crXXX_from":              nil,
	}
	r := testMapper().ToNative(model.KindDependency, []model.Entity{e})[0]
	assert.NotContains(t, r, model.FieldFrom)
	assert.NotContains(t, r, model.FieldTo)
}

func TestDependencyToWire(t *testing.T) {
	out := testMapper().ToWire(model.KindDependency, model.Record{
		model.FieldID:       "_generated5",
		model.FieldType:     float64(2),
		model.FieldCls:      "",
		model.FieldLag:      float64(0),
		model.FieldLagUnit:  "day",
		model.FieldActive:   true,
		model.FieldFrom:     "t1",
		model.FieldTo:       "t2",
		model.FieldFromSide: nil,
	})

	assert.Equal(t, model.Entity{
		"crXXX_type":            float64(2),
		"crXXX_lag":             float64(0),
		"crXXX_lagunit":         "day",
		"crXXX_active":          float64(1),
		"crXXX_from@odata.bind": "/crXXX_gantttasks(t1)",
		"crXXX_to@odata.bind":   "/crXXX_gantttasks(t2)",
	}, out)
}

type staticResolver map[string]string

func (r staticResolver) Resolve(id string) string {
	if v, ok := r[id]; ok {
		return v
	}
	return id
}

func TestDependencyToWireResolvesPhantomEndpoints(t *testing.T) {
	m := testMapper().WithResolver(staticResolver{"_generated1": "server-1"})
	out := m.ToWire(model.KindDependency, model.Record{
		model.FieldFrom: "_generated1",
		model.FieldTo:   "t2",
	})
	assert.Equal(t, "/crXXX_gantttasks(server-1)", out["crXXX_from@odata.bind"])
	assert.Equal(t, "/crXXX_gantttasks(t2)", out["crXXX_to@odata.bind"])
}

func TestMapperNames(t *testing.T) {
	m := testMapper()
	assert.Equal(t, "crXXX_gantttaskid", m.IDColumn(model.KindTask))
	assert.Equal(t, "crXXX_ganttdependencyid", m.IDColumn(model.KindDependency))
	assert.Equal(t, "crXXX_gantttasks", m.EntitySet(model.KindTask))
	assert.Equal(t, "crXXX_ganttdependencies", m.EntitySet(model.KindDependency))
	assert.Empty(t, m.EntitySet("unknown"))
}
