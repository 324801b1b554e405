package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a fill from the perspective of the maker's
// collateral flow: BUY when the maker spends collateral for outcome tokens,
// SELL when the maker spends outcome tokens for collateral.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Outcome tags which side of a binary market a trade touched.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Fill is a decoded OrderFilled event before market matching. Amounts are the
// raw on-chain integers; Price and Size are already normalized to decimal
// units by the decoder.
type Fill struct {
	TxHash       string
	LogIndex     uint64
	BlockNumber  uint64
	Exchange     string
	OrderHash    string
	Maker        string
	Taker        string
	MakerAssetID *big.Int
	TakerAssetID *big.Int
	MakerAmount  *big.Int
	TakerAmount  *big.Int
	Fee          decimal.Decimal
	Side         Side
	TokenID      string // 0x + 64 hex of the traded outcome token
	Price        decimal.Decimal
	Size         decimal.Decimal
}

// Trade is a fill matched to a known market. Natural key: (TxHash, LogIndex).
// Rows are immutable once written.
type Trade struct {
	ID             int64
	MarketID       string
	TxHash         string
	LogIndex       uint64
	BlockNumber    uint64
	Exchange       string
	OrderHash      string
	Maker          string
	Taker          string
	Side           Side
	Outcome        Outcome
	Price          decimal.Decimal
	Size           decimal.Decimal
	Fee            decimal.Decimal
	TokenID        string
	BlockTimestamp time.Time
}

// SyncState records the last block fully and durably ingested for a stream.
// One row per logical stream (typically one per exchange contract).
type SyncState struct {
	StreamKey          string
	LastProcessedBlock uint64
	UpdatedAt          time.Time
}
