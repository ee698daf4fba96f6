package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cadenzahq/cadenza/pkg/domain"
)

func TestClassifyAnswer(t *testing.T) {
	cases := []struct {
		in   string
		want approvalOutcome
	}{
		{"yes", outcomeApproved},
		{"  YES  ", outcomeApproved},
		{"y", outcomeApproved},
		{"confirm", outcomeApproved},
		{"proceed", outcomeApproved},
		{"Yes!", outcomeApproved},
		{"no", outcomeDenied},
		{"N", outcomeDenied},
		{"cancel", outcomeDenied},
		{"abort", outcomeDenied},
		{"no.", outcomeDenied},
		{"maybe", outcomeReprompted},
		{"yes please", outcomeReprompted},
		{"", outcomeReprompted},
		{"sure thing", outcomeReprompted},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, classifyAnswer(tc.in), "answer %q", tc.in)
	}
}

func TestDecodeApproval_StructuredMap(t *testing.T) {
	pending, err := DecodeApproval(map[string]any{
		"handler": "account",
		"request": map[string]any{
			"id":   "op-1",
			"name": "edit_customer_info",
			"args": map[string]any{"parameter": "Email", "value": "x@y.com"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.HandlerAccount, pending.Handler)
	assert.Equal(t, "edit_customer_info", pending.Request.Name)
	assert.Equal(t, "Email", pending.Request.Args["parameter"])
}

func TestDecodeApproval_JSONString(t *testing.T) {
	pending, err := DecodeApproval(`{
		"handler": "account",
		"request": {"id": "op-1", "name": "edit_customer_info", "args": {"parameter": "Phone", "value": "555"}},
		"queued": [{"id": "op-2", "name": "get_customer_info"}]
	}`)
	require.NoError(t, err)

	assert.Equal(t, "edit_customer_info", pending.Request.Name)
	require.Len(t, pending.Queued, 1)
	assert.Equal(t, "get_customer_info", pending.Queued[0].Name)
}

func TestDecodeApproval_Rejects(t *testing.T) {
	_, err := DecodeApproval("not json at all")
	assert.Error(t, err)

	_, err = DecodeApproval(map[string]any{"handler": "account"})
	assert.Error(t, err, "a payload without a request name is useless")
}
