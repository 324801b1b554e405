package ctf

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// OrderFilledTopic is the keccak256 signature hash of the exchange fill
// event:
//
//	OrderFilled(bytes32 indexed orderHash, address indexed maker,
//	            address indexed taker, uint256 makerAssetId,
//	            uint256 takerAssetId, uint256 makerAmountFilled,
//	            uint256 takerAmountFilled, uint256 fee)
var OrderFilledTopic = ethcrypto.Keccak256Hash(
	[]byte("OrderFilled(bytes32,address,address,uint256,uint256,uint256,uint256,uint256)"),
)

// orderFilledDataLen is the byte length of the five non-indexed uint256 words.
const orderFilledDataLen = 5 * 32

// Decoder decodes raw OrderFilled logs into fills. Price and size are
// computed with exact decimal arithmetic, never binary floating point.
type Decoder struct {
	collateralDecimals int32
	tokenDecimals      int32
}

// NewDecoder creates a Decoder. collateralDecimals and tokenDecimals give the
// smallest-unit scale of the collateral asset and the outcome tokens (e.g. 6
// for USDC).
func NewDecoder(collateralDecimals, tokenDecimals int32) *Decoder {
	return &Decoder{
		collateralDecimals: collateralDecimals,
		tokenDecimals:      tokenDecimals,
	}
}

// DecodeOrderFilled decodes a single raw log into a Fill.
//
// Side determination is the single authoritative branch: a zero makerAssetId
// means the maker is spending collateral to buy a position (BUY); any
// non-zero makerAssetId means the maker is selling an outcome token (SELL).
// Direction is never inferred from amounts.
//
// Logs whose taker equals the emitting exchange contract are bookkeeping
// echoes of the same economic fill and are rejected with ErrEchoFill so they
// are never double-counted. Structurally invalid logs are rejected with
// ErrMalformedLog; both classes are skippable, never fatal.
func (d *Decoder) DecodeOrderFilled(lg types.Log) (domain.Fill, error) {
	if len(lg.Topics) != 4 {
		return domain.Fill{}, fmt.Errorf("ctf: %w: got %d topics, want 4", domain.ErrMalformedLog, len(lg.Topics))
	}
	if lg.Topics[0] != OrderFilledTopic {
		return domain.Fill{}, fmt.Errorf("ctf: %w: unexpected event signature %s", domain.ErrMalformedLog, lg.Topics[0])
	}
	if len(lg.Data) < orderFilledDataLen {
		return domain.Fill{}, fmt.Errorf("ctf: %w: data truncated to %d bytes", domain.ErrMalformedLog, len(lg.Data))
	}

	maker := common.BytesToAddress(lg.Topics[2].Bytes())
	taker := common.BytesToAddress(lg.Topics[3].Bytes())

	if taker == lg.Address {
		return domain.Fill{}, fmt.Errorf("ctf: %w: taker %s is the exchange contract", domain.ErrEchoFill, taker)
	}

	makerAssetID := new(big.Int).SetBytes(lg.Data[0:32])
	takerAssetID := new(big.Int).SetBytes(lg.Data[32:64])
	makerAmount := new(big.Int).SetBytes(lg.Data[64:96])
	takerAmount := new(big.Int).SetBytes(lg.Data[96:128])
	fee := new(big.Int).SetBytes(lg.Data[128:160])

	fill := domain.Fill{
		TxHash:       lg.TxHash.Hex(),
		LogIndex:     uint64(lg.Index),
		BlockNumber:  lg.BlockNumber,
		Exchange:     lg.Address.Hex(),
		OrderHash:    lg.Topics[1].Hex(),
		Maker:        maker.Hex(),
		Taker:        taker.Hex(),
		MakerAssetID: makerAssetID,
		TakerAssetID: takerAssetID,
		MakerAmount:  makerAmount,
		TakerAmount:  takerAmount,
		Fee:          decimal.NewFromBigInt(fee, -d.collateralDecimals),
	}

	var collateralAmount, tokenAmount *big.Int
	if makerAssetID.Sign() == 0 {
		fill.Side = domain.SideBuy
		fill.TokenID = TokenIDHex(takerAssetID)
		collateralAmount, tokenAmount = makerAmount, takerAmount
	} else {
		fill.Side = domain.SideSell
		fill.TokenID = TokenIDHex(makerAssetID)
		collateralAmount, tokenAmount = takerAmount, makerAmount
	}

	fill.Size = decimal.NewFromBigInt(tokenAmount, -d.tokenDecimals)
	if tokenAmount.Sign() > 0 {
		collateral := decimal.NewFromBigInt(collateralAmount, -d.collateralDecimals)
		fill.Price = collateral.Div(fill.Size)
	} else {
		fill.Price = decimal.Zero
	}

	return fill, nil
}

// TokenIDHex formats an ERC-1155 asset id as 0x-prefixed 64-character
// lowercase hex, the canonical token id representation used everywhere past
// the decoding boundary.
func TokenIDHex(id *big.Int) string {
	return fmt.Sprintf("0x%064x", id)
}
