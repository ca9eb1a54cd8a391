package dataverse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/harrisonrobin/ganttbridge/pkg/model"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultAPIVersion = "v9.2"

	headerEntityID = "OData-EntityId"
)

// Client is a Dataverse Web API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	log        log.FieldLogger
}

// NewClient creates a client for the environment at environmentURL. The
// http.Client is expected to attach credentials (see package auth).
func NewClient(httpClient *http.Client, environmentURL, apiVersion string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}
	base := strings.TrimRight(environmentURL, "/") + "/api/data/" + apiVersion + "/"
	return &Client{httpClient: httpClient, baseURL: base, log: log.StandardLogger()}
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(l log.FieldLogger) {
	c.log = l
}

// RetrieveMultipleRecords runs query against entitySet and follows
// @odata.nextLink until every page has been read.
func (c *Client) RetrieveMultipleRecords(ctx context.Context, entitySet, query string) (*RetrieveMultipleResponse, error) {
	next := c.baseURL + entitySet + strings.ReplaceAll(query, " ", "%20")
	result := &RetrieveMultipleResponse{Entities: []model.Entity{}}
	for next != "" {
		resp, err := c.do(ctx, http.MethodGet, next, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("retrieveMultipleRecords %s: %w", entitySet, err)
		}
		var page RetrieveMultipleResponse
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("retrieveMultipleRecords %s: failed to decode response: %w", entitySet, err)
		}
		result.Entities = append(result.Entities, page.Entities...)
		next = page.NextLink
	}
	return result, nil
}

// CreateRecord inserts payload and returns the id the service assigned.
func (c *Client) CreateRecord(ctx context.Context, entitySet string, payload model.Entity) (*CreateResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+entitySet, payload, nil)
	if err != nil {
		return nil, fmt.Errorf("createRecord %s: %w", entitySet, err)
	}
	defer resp.Body.Close()

	ref := resp.Header.Get(headerEntityID)
	if ref == "" {
		ref = resp.Header.Get("Location")
	}
	id, ok := EntityIDFromRef(ref)
	if !ok {
		return nil, fmt.Errorf("createRecord %s: no entity id in response (%q)", entitySet, ref)
	}
	return &CreateResponse{ID: id}, nil
}

// UpdateRecord patches an existing record. If-Match prevents an upsert when
// the record has been deleted in the meantime.
func (c *Client) UpdateRecord(ctx context.Context, entitySet, id string, payload model.Entity) error {
	resp, err := c.do(ctx, http.MethodPatch, c.baseURL+entitySet+"("+id+")", payload, map[string]string{"If-Match": "*"})
	if err != nil {
		return fmt.Errorf("updateRecord %s(%s): %w", entitySet, id, err)
	}
	resp.Body.Close()
	return nil
}

// DeleteRecord deletes a record.
func (c *Client) DeleteRecord(ctx context.Context, entitySet, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.baseURL+entitySet+"("+id+")", nil, nil)
	if err != nil {
		return fmt.Errorf("deleteRecord %s(%s): %w", entitySet, id, err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) do(ctx context.Context, method, url string, payload any, headers map[string]string) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("OData-MaxVersion", "4.0")
	req.Header.Set("OData-Version", "4.0")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	c.log.WithField("method", method).WithField("url", url).Debug("dataverse request")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	apiErr := &Error{StatusCode: resp.StatusCode}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	return apiErr
}

// EntityIDFromRef extracts the key from a reference such as
// https://org.example.com/api/data/v9.2/accounts(00000000-0000-0000-0000-000000000001).
func EntityIDFromRef(ref string) (string, bool) {
	end := strings.LastIndex(ref, ")")
	start := strings.LastIndex(ref, "(")
	if start < 0 || end < start+2 {
		return "", false
	}
	return ref[start+1 : end], true
}
