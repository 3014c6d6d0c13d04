// Package remote is the HTTP client for the shopping-list backend. The
// backend is consumed as an opaque remote authority: every call is a JSON
// request/response pair authenticated with a bearer token. Replaying a toggle
// or delete the server has already converged to is a no-op by contract.
//
// Copyright 2026 The cartsync Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Service is the remote API surface the sync engine depends on. The HTTP
// Client below is the production implementation; tests substitute fakes.
type Service interface {
	GetLists(ctx context.Context) ([]List, error)
	GetList(ctx context.Context, id int64) (*ListDetail, error)
	CreateList(ctx context.Context, name string) (*List, error)
	UpdateList(ctx context.Context, id int64, fields map[string]any) (*List, error)
	DeleteList(ctx context.Context, id int64) error
	CompleteList(ctx context.Context, id int64) (*List, error)

	AddItem(ctx context.Context, listID, productID int64, quantity *float64) (*Item, error)
	UpdateItem(ctx context.Context, listID, itemID int64, fields map[string]any) (*Item, error)
	DeleteItem(ctx context.Context, listID, itemID int64) error
	ToggleItem(ctx context.Context, listID, itemID int64) (*Item, error)
	ToggleAllItems(ctx context.Context, listID int64, checked bool) error

	SearchProducts(ctx context.Context, query string) ([]Product, error)
	GetFavorites(ctx context.Context) ([]Product, error)
	AddFavorite(ctx context.Context, productID int64) error
	RemoveFavorite(ctx context.Context, productID int64) error
	IsFavorite(ctx context.Context, productID int64) (bool, error)
	CreateProduct(ctx context.Context, name string) (*Product, error)
}

// TokenFunc supplies the bearer token for each request.
type TokenFunc func(ctx context.Context) (string, error)

// Client is the HTTP implementation of Service.
type Client struct {
	BaseURL string
	Token   TokenFunc
	HTTP    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, token TokenFunc, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// do performs one JSON request. A nil out skips response decoding.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != nil {
		token, err := c.Token(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	var lists []List
	if err := c.do(ctx, http.MethodGet, "/api/lists", nil, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

func (c *Client) GetList(ctx context.Context, id int64) (*ListDetail, error) {
	var detail ListDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/lists/%d", id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *Client) CreateList(ctx context.Context, name string) (*List, error) {
	var list List
	if err := c.do(ctx, http.MethodPost, "/api/lists", map[string]any{"name": name}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) UpdateList(ctx context.Context, id int64, fields map[string]any) (*List, error) {
	var list List
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/lists/%d", id), fields, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) DeleteList(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/lists/%d", id), nil, nil)
}

func (c *Client) CompleteList(ctx context.Context, id int64) (*List, error) {
	var list List
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/lists/%d/complete", id), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) AddItem(ctx context.Context, listID, productID int64, quantity *float64) (*Item, error) {
	body := map[string]any{"productId": productID}
	if quantity != nil {
		body["quantity"] = *quantity
	}
	var item Item
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/lists/%d/items", listID), body, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) UpdateItem(ctx context.Context, listID, itemID int64, fields map[string]any) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/lists/%d/items/%d", listID, itemID), fields, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) DeleteItem(ctx context.Context, listID, itemID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/lists/%d/items/%d", listID, itemID), nil, nil)
}

func (c *Client) ToggleItem(ctx context.Context, listID, itemID int64) (*Item, error) {
	var item Item
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/lists/%d/items/%d/toggle", listID, itemID), nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

func (c *Client) ToggleAllItems(ctx context.Context, listID int64, checked bool) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/lists/%d/items/toggle-all", listID),
		map[string]any{"checked": checked}, nil)
}

func (c *Client) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	var products []Product
	path := "/api/products/search?q=" + url.QueryEscape(query)
	if err := c.do(ctx, http.MethodGet, path, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *Client) GetFavorites(ctx context.Context) ([]Product, error) {
	var resp FavoritesResponse
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Favorites, nil
}

func (c *Client) AddFavorite(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/favorites/%d", productID), nil, nil)
}

func (c *Client) RemoveFavorite(ctx context.Context, productID int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/favorites/%d", productID), nil, nil)
}

func (c *Client) IsFavorite(ctx context.Context, productID int64) (bool, error) {
	var resp struct {
		Favorite bool `json:"favorite"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/favorites/%d", productID), nil, &resp); err != nil {
		return false, err
	}
	return resp.Favorite, nil
}

func (c *Client) CreateProduct(ctx context.Context, name string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodPost, "/api/products", map[string]any{"name": name}, &product); err != nil {
		return nil, err
	}
	return &product, nil
}
