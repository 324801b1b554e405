package gamma

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

func TestNormalizeTokenID(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		fails bool
	}{
		{
			name: "decimal",
			in:   "42",
			want: "0x000000000000000000000000000000000000000000000000000000000000002a",
		},
		{
			name: "large decimal keeps precision",
			in:   "21742633143463906290569050155826241533067272736897614950488156847949938836455",
			want: "0x3011e4ede0f6befa0ad3f571001d3e1ffeef3d4af78c3112aaac90416e3a43e7",
		},
		{
			name: "hex passthrough",
			in:   "0x2A",
			want: "0x000000000000000000000000000000000000000000000000000000000000002a",
		},
		{name: "empty", in: "", fails: true},
		{name: "garbage", in: "not-a-number", fails: true},
		{
			name:  "over 256 bits",
			in:    "0x10000000000000000000000000000000000000000000000000000000000000000",
			fails: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTokenID(tt.in)
			if tt.fails {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTokenIDListShapes(t *testing.T) {
	want := tokenIDList{
		"0x0000000000000000000000000000000000000000000000000000000000000001",
		"0x0000000000000000000000000000000000000000000000000000000000000002",
	}

	t.Run("array of strings", func(t *testing.T) {
		var got tokenIDList
		require.NoError(t, json.Unmarshal([]byte(`["1","2"]`), &got))
		assert.Equal(t, want, got)
	})

	t.Run("double-encoded string", func(t *testing.T) {
		var got tokenIDList
		require.NoError(t, json.Unmarshal([]byte(`"[\"1\",\"2\"]"`), &got))
		assert.Equal(t, want, got)
	})

	t.Run("bare numbers", func(t *testing.T) {
		var got tokenIDList
		require.NoError(t, json.Unmarshal([]byte(`[1,2]`), &got))
		assert.Equal(t, want, got)
	})

	t.Run("null", func(t *testing.T) {
		var got tokenIDList
		require.NoError(t, json.Unmarshal([]byte(`null`), &got))
		assert.Nil(t, got)
	})

	t.Run("empty string", func(t *testing.T) {
		var got tokenIDList
		require.NoError(t, json.Unmarshal([]byte(`""`), &got))
		assert.Nil(t, got)
	})

	t.Run("invalid entry", func(t *testing.T) {
		var got tokenIDList
		assert.Error(t, json.Unmarshal([]byte(`["abc"]`), &got))
	})
}

func TestToDomainMarket(t *testing.T) {
	raw := `{
		"id": "12345",
		"slug": "will-x-happen",
		"question": "Will X happen?",
		"conditionId": "0xABCD",
		"questionID": "0x1234",
		"clobTokenIds": "[\"1\",\"2\"]",
		"negRisk": true,
		"active": true,
		"closed": false
	}`

	var am APIMarket
	require.NoError(t, json.Unmarshal([]byte(raw), &am))

	m := am.ToDomainMarket("election-2026")
	assert.Equal(t, "12345", m.ID)
	assert.Equal(t, "election-2026", m.EventSlug)
	assert.Equal(t, "will-x-happen", m.Slug)
	assert.Equal(t, "0xabcd", m.ConditionID)
	assert.Equal(t, "0x1234", m.QuestionID)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000001", m.YesTokenID)
	assert.Equal(t, "0x0000000000000000000000000000000000000000000000000000000000000002", m.NoTokenID)
	assert.True(t, m.NegRisk)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
}

func TestToDomainMarketClosed(t *testing.T) {
	am := APIMarket{ID: "1", Slug: "s", Active: false, Closed: false}
	assert.Equal(t, domain.MarketStatusClosed, am.ToDomainMarket("e").Status)

	am = APIMarket{ID: "1", Slug: "s", Active: true, Closed: true}
	assert.Equal(t, domain.MarketStatusClosed, am.ToDomainMarket("e").Status)
}
