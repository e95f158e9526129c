package client

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString accepts a JSON string, number, or boolean and keeps its text.
// The backend sends IDs, prices and amounts as either numbers or strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

func (f FlexString) String() string {
	return string(f)
}

// Float parses the value as a number
func (f FlexString) Float() (float64, error) {
	return strconv.ParseFloat(string(f), 64)
}

// TokenResponse covers every token envelope the auth endpoints are known to
// return: {access_token, refresh_token}, {access, refresh}, or either of
// those nested under "data".
type TokenResponse struct {
	AccessToken  string          `json:"access_token"`
	Access       string          `json:"access"`
	RefreshToken string          `json:"refresh_token"`
	Refresh      string          `json:"refresh"`
	Email        FlexString      `json:"email"`
	Message      FlexString      `json:"message"`
	Detail       FlexString      `json:"detail"`
	Data         json.RawMessage `json:"data"`
}

// Tokens returns the access and refresh tokens, preferring top-level fields
// over the nested data envelope
func (r *TokenResponse) Tokens() (access, refresh string) {
	access = firstNonEmpty(r.AccessToken, r.Access)
	refresh = firstNonEmpty(r.RefreshToken, r.Refresh)
	if access != "" {
		return access, refresh
	}

	var nested struct {
		AccessToken  string `json:"access_token"`
		Access       string `json:"access"`
		RefreshToken string `json:"refresh_token"`
		Refresh      string `json:"refresh"`
	}
	if len(r.Data) == 0 || json.Unmarshal(r.Data, &nested) != nil {
		return "", ""
	}
	return firstNonEmpty(nested.Access, nested.AccessToken),
		firstNonEmpty(nested.Refresh, nested.RefreshToken)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignupRequest represents the self-registration request body
type SignupRequest struct {
	FullName string `json:"full_name" validate:"required"`
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	RoleID   *int   `json:"role_id,omitempty"`
}

// Vehicle represents a vehicle in the catalogue
type Vehicle struct {
	ID             FlexString `json:"id,omitempty" yaml:"id"`
	Brand          string     `json:"brand" yaml:"brand" validate:"required"`
	Name           string     `json:"name" yaml:"name"`
	ModelNumber    string     `json:"model_number" yaml:"model_number" validate:"required"`
	Price          FlexString `json:"price" yaml:"price" validate:"positive"`
	CommissionBase FlexString `json:"commission_base" yaml:"commission_base" validate:"omitempty,numeric"`
}

// Sale statuses
const (
	SaleStatusPending   = "pending"
	SaleStatusCompleted = "completed"
	SaleStatusCancelled = "cancelled"
)

// Sale represents a sales record. AgentName and VehicleName are read-only
// fields filled in by the backend.
type Sale struct {
	ID           FlexString `json:"id,omitempty" yaml:"id"`
	Agent        FlexString `json:"agent" yaml:"agent" validate:"required"`
	AgentName    string     `json:"agent_name,omitempty" yaml:"agent_name"`
	Vehicle      FlexString `json:"vehicle" yaml:"vehicle" validate:"required"`
	VehicleName  string     `json:"vehicle_name,omitempty" yaml:"vehicle_name"`
	CustomerName string     `json:"customer_name" yaml:"customer_name" validate:"required"`
	Amount       FlexString `json:"amount" yaml:"amount" validate:"required,numeric"`
	Status       string     `json:"status,omitempty" yaml:"status" validate:"omitempty,oneof=pending completed cancelled"`
	SaleDate     string     `json:"sale_date,omitempty" yaml:"sale_date"`
}

// Agent represents a user in the referral network
type Agent struct {
	ID           FlexString `json:"id" yaml:"id"`
	Username     string     `json:"username" yaml:"username"`
	Email        string     `json:"email" yaml:"email"`
	Phone        string     `json:"phone" yaml:"phone"`
	ReferralCode string     `json:"referral_code" yaml:"referral_code"`
	Level        int        `json:"level" yaml:"level"`
	Earnings     FlexString `json:"earnings" yaml:"earnings"`
	TotalSales   int        `json:"total_sales" yaml:"total_sales"`
	CreatedAt    string     `json:"created_at" yaml:"created_at"`
	UpdatedAt    string     `json:"updated_at" yaml:"updated_at"`
	Role         string     `json:"role" yaml:"role"`
}

// NewAgent is the payload an admin uses to create an agent account
type NewAgent struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone,omitempty"`
	SponsorCode string `json:"sponsor_code,omitempty"`
	Role        string `json:"role" validate:"required,oneof=agent admin"`
}

// Fields is a partial update: only the keys present are sent
type Fields map[string]any
