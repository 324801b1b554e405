package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreNamespaced(t *testing.T) {
	assert.Equal(t, "polyidx:market:m1", marketKey("m1"))
	assert.Equal(t, "polyidx:market:slug:some-market", marketSlugKey("some-market"))
	assert.Equal(t, "polyidx:block:ts:12345", timestampKey(12345))
}

func TestMarketTokenKeyLowercasesHex(t *testing.T) {
	assert.Equal(t,
		"polyidx:market:token:0xabcdef",
		marketTokenKey("0xABCDEF"),
	)
}
