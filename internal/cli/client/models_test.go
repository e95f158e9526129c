package client

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString_Unmarshal(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
		D FlexString `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.50","b":12.5,"c":true,"d":null}`), &v))

	assert.Equal(t, FlexString("12.50"), v.A)
	assert.Equal(t, FlexString("12.5"), v.B)
	assert.Equal(t, FlexString("true"), v.C)
	assert.Equal(t, FlexString(""), v.D)

	f, err := v.B.Float()
	require.NoError(t, err)
	assert.InDelta(t, 12.5, f, 0.0001)
}

func TestValidate_Sale(t *testing.T) {
	err := Validate(Sale{Agent: "1", Vehicle: "2", CustomerName: "Eve", Amount: "abc", Status: "lost"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 2)
	assert.Equal(t, "Amount must be a number", verr.Fields["amount"])
	assert.Equal(t, "Status must be one of: pending, completed, cancelled", verr.Fields["status"])

	assert.NoError(t, Validate(Sale{Agent: "1", Vehicle: "2", CustomerName: "Eve", Amount: "100.5"}))
}

func TestValidate_Signup(t *testing.T) {
	err := Validate(SignupRequest{Email: "a@b.com"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Full name is required; Password is required", verr.Error())

	err = Validate(SignupRequest{FullName: "Eve", Email: "a@b.com", Password: "12345"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Password must be at least 6 characters", verr.Fields["password"])

	assert.NoError(t, Validate(SignupRequest{FullName: "Eve", Email: "a@b.com", Password: "123456"}))
}

func TestValidateVehiclePatch(t *testing.T) {
	assert.NoError(t, ValidateVehiclePatch(Fields{"name": ""}))
	assert.NoError(t, ValidateVehiclePatch(Fields{"price": 12}))

	err := ValidateVehiclePatch(Fields{"brand": " ", "price": "-1"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Brand is required", verr.Fields["brand"])
	assert.Equal(t, "Price must be > 0", verr.Fields["price"])
}

func TestValidateSalePatch(t *testing.T) {
	assert.NoError(t, ValidateSalePatch(Fields{"status": SaleStatusCancelled, "amount": "10"}))

	err := ValidateSalePatch(Fields{"customer_name": ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Customer name is required", verr.Error())
}
