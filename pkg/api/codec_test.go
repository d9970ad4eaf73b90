package api

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodecAcceptsNumericAndStringAmounts(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "number", body: `{"description":"Dinner","amount":100.5,"currency":"USD"}`, want: "100.5"},
		{name: "string", body: `{"description":"Dinner","amount":"33.33","currency":"USD"}`, want: "33.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req CreateExpenseRequest
			require.NoError(t, Codec{}.Unmarshal([]byte(tt.body), &req))
			assert.True(t, req.Amount.Equal(decimal.RequireFromString(tt.want)), "amount = %s", req.Amount)
			assert.Equal(t, "Dinner", req.Description)
		})
	}
}

func TestCodecEmptyBody(t *testing.T) {
	var req ListGroupsRequest
	assert.NoError(t, Codec{}.Unmarshal(nil, &req))
}

func TestCodecMarshalsAmountsAsStrings(t *testing.T) {
	data, err := Codec{}.Marshal(&Transfer{FromUserID: "a", ToUserID: "b", Amount: decimal.RequireFromString("12.5")})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"amount":"12.5"`)
	assert.Equal(t, "json", Codec{}.Name())
}

func TestCodecRejectsMalformedJSON(t *testing.T) {
	var req GetExpenseRequest
	assert.Error(t, Codec{}.Unmarshal([]byte(`{"expenseId":`), &req))
}
