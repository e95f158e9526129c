package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RefreshToken exchanges a refresh token for a new access token
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    pathRefreshToken,
		Payload: RefreshRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		return nil, err
	}
	return decodeTokenResponse(body), nil
}

// Login authenticates with username and password. A response without a
// recognisable token is not an error here; the caller inspects Tokens().
func (c *Client) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	body, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/users/login/",
		Payload: LoginRequest{Username: username, Password: password},
	})
	if err != nil {
		return nil, err
	}
	return decodeTokenResponse(body), nil
}

// Register creates a new account through self-signup
func (c *Client) Register(ctx context.Context, req SignupRequest) (*TokenResponse, error) {
	body, err := c.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "/users/register/",
		Payload: req,
	})
	if err != nil {
		return nil, err
	}
	return decodeTokenResponse(body), nil
}

// ListAgents returns the agents matching query (search, phone, ordering)
func (c *Client) ListAgents(ctx context.Context, query url.Values) ([]Agent, error) {
	body, err := c.Do(ctx, Request{
		Method:      http.MethodGet,
		Path:        withQuery("/users/all/", query),
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return decodeList[Agent](body)
}

// CreateAgent creates an agent account on behalf of the signed-in admin
func (c *Client) CreateAgent(ctx context.Context, agent NewAgent) error {
	if err := Validate(agent); err != nil {
		return err
	}
	if _, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/users/register/",
		Payload:     agent,
		RequireAuth: true,
	}); err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}
	return nil
}

// GetDownline returns the flat downline of an agent, each entry carrying its level
func (c *Client) GetDownline(ctx context.Context, agentID string) ([]Agent, error) {
	body, err := c.Do(ctx, Request{
		Method:      http.MethodGet,
		Path:        fmt.Sprintf("/users/downline/by-id/%s/", url.PathEscape(agentID)),
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load downline: %w", err)
	}
	return decodeList[Agent](body)
}

// ListVehicles returns the vehicles matching query (brand, model_number, price, search, ordering)
func (c *Client) ListVehicles(ctx context.Context, query url.Values) ([]Vehicle, error) {
	body, err := c.Do(ctx, Request{
		Method:      http.MethodGet,
		Path:        withQuery("/vehicles/", query),
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return decodeList[Vehicle](body)
}

// CreateVehicle adds a vehicle to the catalogue
func (c *Client) CreateVehicle(ctx context.Context, vehicle Vehicle) (*Vehicle, error) {
	if err := Validate(vehicle); err != nil {
		return nil, err
	}
	if vehicle.CommissionBase == "" {
		vehicle.CommissionBase = "0"
	}
	body, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/vehicles/",
		Payload:     vehicle,
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return decodeOptional[Vehicle](body)
}

// UpdateVehicle changes the given fields of a vehicle
func (c *Client) UpdateVehicle(ctx context.Context, id string, fields Fields) (*Vehicle, error) {
	if err := ValidateVehiclePatch(fields); err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, Request{
		Method:      http.MethodPatch,
		Path:        fmt.Sprintf("/vehicles/%s/", url.PathEscape(id)),
		Payload:     fields,
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update vehicle: %w", err)
	}
	return decodeOptional[Vehicle](body)
}

// DeleteVehicle deletes a vehicle by ID
func (c *Client) DeleteVehicle(ctx context.Context, id string) error {
	if _, err := c.Do(ctx, Request{
		Method:      http.MethodDelete,
		Path:        fmt.Sprintf("/vehicles/%s/", url.PathEscape(id)),
		RequireAuth: true,
	}); err != nil {
		return fmt.Errorf("failed to delete vehicle: %w", err)
	}
	return nil
}

// ListSales returns the sales matching query (search, ordering)
func (c *Client) ListSales(ctx context.Context, query url.Values) ([]Sale, error) {
	body, err := c.Do(ctx, Request{
		Method:      http.MethodGet,
		Path:        withQuery("/sales/", query),
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return decodeList[Sale](body)
}

// CreateSale records a new sale
func (c *Client) CreateSale(ctx context.Context, sale Sale) (*Sale, error) {
	if sale.Status == "" {
		sale.Status = SaleStatusPending
	}
	if err := Validate(sale); err != nil {
		return nil, err
	}
	// Names are derived server-side
	sale.AgentName, sale.VehicleName = "", ""
	body, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/sales/",
		Payload:     sale,
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}
	return decodeOptional[Sale](body)
}

// UpdateSale changes the given fields of a sale
func (c *Client) UpdateSale(ctx context.Context, id string, fields Fields) (*Sale, error) {
	if err := ValidateSalePatch(fields); err != nil {
		return nil, err
	}
	body, err := c.Do(ctx, Request{
		Method:      http.MethodPatch,
		Path:        fmt.Sprintf("/sales/%s/", url.PathEscape(id)),
		Payload:     fields,
		RequireAuth: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update sale: %w", err)
	}
	return decodeOptional[Sale](body)
}

// DeleteSale deletes a sale by ID
func (c *Client) DeleteSale(ctx context.Context, id string) error {
	if _, err := c.Do(ctx, Request{
		Method:      http.MethodDelete,
		Path:        fmt.Sprintf("/sales/%s/", url.PathEscape(id)),
		RequireAuth: true,
	}); err != nil {
		return fmt.Errorf("failed to delete sale: %w", err)
	}
	return nil
}

// decodeTokenResponse never fails: a body that is not a JSON object yields
// an empty response, which callers treat as "no token"
func decodeTokenResponse(body *Body) *TokenResponse {
	var res TokenResponse
	if body.Kind == KindJSON {
		_ = json.Unmarshal(body.Raw, &res)
	}
	return &res
}

// decodeList accepts a bare array or a paginated {"results": [...]} envelope
func decodeList[T any](body *Body) ([]T, error) {
	if body.Kind != KindJSON {
		return nil, fmt.Errorf("unexpected %s response: %s", body.Kind, preview(body.Raw))
	}

	if trimmed := bytes.TrimSpace(body.Raw); len(trimmed) > 0 && trimmed[0] == '{' {
		var page struct {
			Results []T `json:"results"`
		}
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return page.Results, nil
	}

	var items []T
	if err := body.Decode(&items); err != nil {
		return nil, err
	}
	return items, nil
}

// decodeOptional decodes a JSON object body; empty bodies yield nil
func decodeOptional[T any](body *Body) (*T, error) {
	if body.Kind != KindJSON {
		return nil, nil
	}
	var v T
	if err := body.Decode(&v); err != nil {
		return nil, err
	}
	return &v, nil
}
