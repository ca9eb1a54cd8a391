package dataverse

import (
	"context"
	"errors"
	"fmt"

	"github.com/harrisonrobin/ganttbridge/pkg/model"
)

// ErrNotImplemented is returned by the development harness, which has no
// data backend behind it.
var ErrNotImplemented = errors.New("dataverse: capability not implemented")

// WebAPI is the subset of the host data service the bridge talks to.
type WebAPI interface {
	RetrieveMultipleRecords(ctx context.Context, entitySet, query string) (*RetrieveMultipleResponse, error)
	CreateRecord(ctx context.Context, entitySet string, payload model.Entity) (*CreateResponse, error)
	UpdateRecord(ctx context.Context, entitySet, id string, payload model.Entity) error
	DeleteRecord(ctx context.Context, entitySet, id string) error
}

// RetrieveMultipleResponse holds every entity a query returned.
type RetrieveMultipleResponse struct {
	Entities []model.Entity `json:"value"`
	NextLink string         `json:"@odata.nextLink,omitempty"`
}

// CreateResponse carries the identifier the service assigned.
type CreateResponse struct {
	ID string `json:"id"`
}

// Error is a non-2xx answer from the service.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("dataverse: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("dataverse: %d: %s", e.StatusCode, e.Message)
}

// Harness stands in for the data service in local development. Every call
// fails with ErrNotImplemented.
type Harness struct{}

func (Harness) RetrieveMultipleRecords(ctx context.Context, entitySet, query string) (*RetrieveMultipleResponse, error) {
	return nil, fmt.Errorf("retrieveMultipleRecords %s: %w", entitySet, ErrNotImplemented)
}

func (Harness) CreateRecord(ctx context.Context, entitySet string, payload model.Entity) (*CreateResponse, error) {
	return nil, fmt.Errorf("createRecord %s: %w", entitySet, ErrNotImplemented)
}

func (Harness) UpdateRecord(ctx context.Context, entitySet, id string, payload model.Entity) error {
	return fmt.Errorf("updateRecord %s(%s): %w", entitySet, id, ErrNotImplemented)
}

func (Harness) DeleteRecord(ctx context.Context, entitySet, id string) error {
	return fmt.Errorf("deleteRecord %s(%s): %w", entitySet, id, ErrNotImplemented)
}

// EntitySetPath is the relationship-binding reference for a record.
func EntitySetPath(entitySet, id string) string {
	return fmt.Sprintf("/%s(%s)", entitySet, id)
}

// BindKey is the payload key that binds a lookup column on write.
func BindKey(column string) string {
	return column + "@odata.bind"
}
