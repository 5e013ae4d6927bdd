package detect

import (
	"testing"

	"retrohunt/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankAndCap_OrdersDescendingAndTruncates(t *testing.T) {
	alerts := []*core.Alert{
		{AlertName: "low", Score: 1},
		{AlertName: "high", Score: 10},
		{AlertName: "mid", Score: 5},
	}

	ranked := rankAndCap(alerts, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].AlertName)
	assert.Equal(t, "mid", ranked[1].AlertName)
}

func TestRankAndCap_StableForEqualScores(t *testing.T) {
	alerts := []*core.Alert{
		{AlertName: "first", Score: 3},
		{AlertName: "second", Score: 3},
	}
	ranked := rankAndCap(alerts, 100)
	require.Len(t, ranked, 2)
	assert.Equal(t, "first", ranked[0].AlertName)
	assert.Equal(t, "second", ranked[1].AlertName)
}

func TestRankAndCap_NilBecomesEmpty(t *testing.T) {
	ranked := rankAndCap(nil, 100)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}
