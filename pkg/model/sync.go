package model

// StoreID names one of the widget's record stores.
type StoreID string

const (
	StoreTasks        StoreID = "tasks"
	StoreDependencies StoreID = "dependencies"
)

// Kind returns the record kind held by the store, or "" for unknown stores.
func (s StoreID) Kind() Kind {
	switch s {
	case StoreTasks:
		return KindTask
	case StoreDependencies:
		return KindDependency
	}
	return ""
}

// Action is the kind of local mutation the widget reports.
type Action string

const (
	ActionAdd    Action = "add"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
	// ActionDataset is a bulk reset of a store. It has no remote effect.
	ActionDataset Action = "dataset"
)

// StoreRef is the store descriptor carried by a change notification.
type StoreRef struct {
	ID StoreID `json:"id"`
}

// SyncRecord is one mutated record as reported by the widget.
type SyncRecord struct {
	Data Record `json:"data"`
	Meta struct {
		Modified Record `json:"modified,omitempty"`
	} `json:"meta"`
}

// SyncEvent is the widget's data-change notification.
type SyncEvent struct {
	Store   StoreRef     `json:"store"`
	Action  Action       `json:"action"`
	Records []SyncRecord `json:"records"`
}

// IDPatch swaps a phantom identifier for the one the data service assigned.
type IDPatch struct {
	PhantomID string `json:"$PhantomId"`
	ID        string `json:"id"`
}

// Changeset is applied to a widget store after remote writes succeed.
type Changeset struct {
	Updated []IDPatch `json:"updated"`
}
