// Package api maps the platform's REST resources onto typed clients.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"storefront/internal/common/errors"
	"storefront/internal/models"
)

// Doer is the transport every resource is built on. It is satisfied by the
// shared JSON client in internal/common/http.
type Doer interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error
}

// Resource is the CRUD surface of one REST collection:
//
//	GET    /<name>        list
//	GET    /<name>/{id}   get
//	POST   /<name>        create
//	PUT    /<name>/{id}   update
//	DELETE /<name>/{id}   delete
type Resource[T models.Entity] struct {
	client Doer
	name   string
}

func NewResource[T models.Entity](client Doer, name string) *Resource[T] {
	return &Resource[T]{client: client, name: strings.Trim(name, "/")}
}

func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) itemPath(id string) string {
	return "/" + r.name + "/" + url.PathEscape(id)
}

func (r *Resource[T]) List(ctx context.Context, query url.Values) ([]T, error) {
	var raw json.RawMessage
	if err := r.client.Do(ctx, http.MethodGet, "/"+r.name, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func (r *Resource[T]) Get(ctx context.Context, id string) (T, error) {
	var out T
	err := r.client.Do(ctx, http.MethodGet, r.itemPath(id), nil, nil, &out)
	return out, err
}

// Create posts item and returns the server's copy. An empty response body
// returns item unchanged.
func (r *Resource[T]) Create(ctx context.Context, item T) (T, error) {
	return r.write(ctx, http.MethodPost, "/"+r.name, item)
}

func (r *Resource[T]) Update(ctx context.Context, id string, item T) (T, error) {
	return r.write(ctx, http.MethodPut, r.itemPath(id), item)
}

// write sends item and decodes the reply into a fresh value so the
// caller's maps and slices are never written to.
func (r *Resource[T]) write(ctx context.Context, method, path string, item T) (T, error) {
	var zero T
	var raw json.RawMessage
	if err := r.client.Do(ctx, method, path, nil, item, &raw); err != nil {
		return zero, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return item, nil
	}
	var out T
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return zero, errors.NewApiError(http.StatusOK, "invalid response body", string(trimmed))
	}
	return out, nil
}

func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	return r.client.Do(ctx, http.MethodDelete, r.itemPath(id), nil, nil, nil)
}

// decodeList accepts a bare JSON array or an envelope carrying the array
// under "data" or "items". An empty body is an empty list.
func decodeList[T any](raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []T{}, nil
	}

	if trimmed[0] == '{' {
		var envelope struct {
			Data  []T `json:"data"`
			Items []T `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &envelope); err != nil {
			return nil, errors.NewApiError(http.StatusOK, "invalid list response", string(trimmed))
		}
		switch {
		case envelope.Data != nil:
			return envelope.Data, nil
		case envelope.Items != nil:
			return envelope.Items, nil
		}
		return []T{}, nil
	}

	items := []T{}
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errors.NewApiError(http.StatusOK, "invalid list response", string(trimmed))
	}
	return items, nil
}
