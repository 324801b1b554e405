// Package ctf implements the Gnosis Conditional Token Framework identifier
// derivations and the decoding of exchange fill events. All derivations are
// pure keccak256 computations over canonically encoded inputs; identical
// inputs always produce byte-identical output.
package ctf

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Index sets for the two slots of a binary condition.
const (
	IndexSetYes uint64 = 1 // 0b01
	IndexSetNo  uint64 = 2 // 0b10
)

// BinaryOutcomeSlots is the slot count of a yes/no condition.
const BinaryOutcomeSlots uint64 = 2

// ParentCollectionRoot is the zero parent collection id used for top-level
// (non-nested) positions.
var ParentCollectionRoot = common.Hash{}

// ConditionID computes keccak256(abi.encode(oracle, questionID, slots)):
// the oracle address left-padded to a 32-byte word, the 32-byte question id,
// and the slot count as a 32-byte big-endian word, in that order.
func ConditionID(oracle common.Address, questionID common.Hash, outcomeSlots uint64) common.Hash {
	buf := make([]byte, 0, 96)
	buf = append(buf, common.LeftPadBytes(oracle.Bytes(), 32)...)
	buf = append(buf, questionID.Bytes()...)
	buf = append(buf, uint64Word(outcomeSlots)...)
	return ethcrypto.Keccak256Hash(buf)
}

// CollectionID computes keccak256(parent ∥ conditionID ∥ indexSet) with the
// index set encoded as a 32-byte big-endian word.
func CollectionID(parent, conditionID common.Hash, indexSet uint64) common.Hash {
	buf := make([]byte, 0, 96)
	buf = append(buf, parent.Bytes()...)
	buf = append(buf, conditionID.Bytes()...)
	buf = append(buf, uint64Word(indexSet)...)
	return ethcrypto.Keccak256Hash(buf)
}

// PositionID computes keccak256(collateral ∥ collectionID) with the
// collateral address encoded as its raw 20 bytes. The result is the ERC-1155
// token id that tags a traded position on-chain.
func PositionID(collateral common.Address, collectionID common.Hash) common.Hash {
	buf := make([]byte, 0, 52)
	buf = append(buf, collateral.Bytes()...)
	buf = append(buf, collectionID.Bytes()...)
	return ethcrypto.Keccak256Hash(buf)
}

// BinaryTokens holds the two position ids of a binary condition.
type BinaryTokens struct {
	Yes common.Hash
	No  common.Hash
}

// BinaryOutcomeTokens derives the YES (indexSet=1) and NO (indexSet=2)
// position ids for a condition under the zero parent collection.
func BinaryOutcomeTokens(conditionID common.Hash, collateral common.Address) BinaryTokens {
	return BinaryTokens{
		Yes: PositionID(collateral, CollectionID(ParentCollectionRoot, conditionID, IndexSetYes)),
		No:  PositionID(collateral, CollectionID(ParentCollectionRoot, conditionID, IndexSetNo)),
	}
}

// BinaryDerivation is the result of deriving a binary market's identifiers.
type BinaryDerivation struct {
	ConditionID common.Hash
	Tokens      BinaryTokens

	// Fallback reports that the authoritative question id was unavailable
	// and the published condition id was substituted in its place. Callers
	// must surface this degradation; a Fallback derivation is never treated
	// as verified.
	Fallback bool
}

// DeriveBinaryMarket derives the condition id and outcome tokens for a binary
// market. When questionID is nil the published condition id is substituted
// for the question id and the result is flagged Fallback. When questionID is
// present the condition id is recomputed from the oracle and question id,
// ignoring publishedCondition.
func DeriveBinaryMarket(oracle common.Address, questionID *common.Hash, publishedCondition common.Hash, collateral common.Address) BinaryDerivation {
	if questionID == nil {
		return BinaryDerivation{
			ConditionID: publishedCondition,
			Tokens:      BinaryOutcomeTokens(publishedCondition, collateral),
			Fallback:    true,
		}
	}
	cond := ConditionID(oracle, *questionID, BinaryOutcomeSlots)
	return BinaryDerivation{
		ConditionID: cond,
		Tokens:      BinaryOutcomeTokens(cond, collateral),
	}
}

// uint64Word encodes v as a 32-byte big-endian word.
func uint64Word(v uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(v).Bytes(), 32)
}
