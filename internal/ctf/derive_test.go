package ctf

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testOracle     = common.HexToAddress("0x6A9D222616C90FcA5754cd1333cFD9b7fb6a4F74")
	testCollateral = common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174")
	testQuestionID = common.HexToHash("0x2222222222222222222222222222222222222222222222222222222222222222")
)

func TestConditionIDDeterministic(t *testing.T) {
	a := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)
	b := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)
	assert.Equal(t, a, b)
	assert.NotEqual(t, common.Hash{}, a)
}

func TestConditionIDSensitivity(t *testing.T) {
	base := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)

	otherOracle := common.HexToAddress("0x0000000000000000000000000000000000000001")
	assert.NotEqual(t, base, ConditionID(otherOracle, testQuestionID, BinaryOutcomeSlots))

	otherQuestion := common.HexToHash("0x3333333333333333333333333333333333333333333333333333333333333333")
	assert.NotEqual(t, base, ConditionID(testOracle, otherQuestion, BinaryOutcomeSlots))

	assert.NotEqual(t, base, ConditionID(testOracle, testQuestionID, 3))
}

func TestCollectionIDIndexSets(t *testing.T) {
	cond := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)

	yes := CollectionID(ParentCollectionRoot, cond, IndexSetYes)
	no := CollectionID(ParentCollectionRoot, cond, IndexSetNo)
	assert.NotEqual(t, yes, no)

	// Same inputs, same collection.
	assert.Equal(t, yes, CollectionID(ParentCollectionRoot, cond, IndexSetYes))
}

func TestBinaryOutcomeTokensDistinct(t *testing.T) {
	cond := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)
	tokens := BinaryOutcomeTokens(cond, testCollateral)

	assert.NotEqual(t, tokens.Yes, tokens.No)
	assert.NotEqual(t, common.Hash{}, tokens.Yes)
	assert.NotEqual(t, common.Hash{}, tokens.No)
}

func TestBinaryOutcomeTokensCollateralBound(t *testing.T) {
	cond := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)
	a := BinaryOutcomeTokens(cond, testCollateral)
	b := BinaryOutcomeTokens(cond, common.HexToAddress("0x00000000000000000000000000000000000000ff"))

	assert.NotEqual(t, a.Yes, b.Yes)
	assert.NotEqual(t, a.No, b.No)
}

func TestDeriveBinaryMarketFromQuestionID(t *testing.T) {
	// A bogus published condition must be ignored when the question id is known.
	published := common.HexToHash("0xdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")

	d := DeriveBinaryMarket(testOracle, &testQuestionID, published, testCollateral)
	require.False(t, d.Fallback)

	want := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)
	assert.Equal(t, want, d.ConditionID)
	assert.Equal(t, BinaryOutcomeTokens(want, testCollateral), d.Tokens)
}

func TestDeriveBinaryMarketFallback(t *testing.T) {
	published := ConditionID(testOracle, testQuestionID, BinaryOutcomeSlots)

	d := DeriveBinaryMarket(testOracle, nil, published, testCollateral)
	require.True(t, d.Fallback)
	assert.Equal(t, published, d.ConditionID)
	assert.Equal(t, BinaryOutcomeTokens(published, testCollateral), d.Tokens)
}
