package ctf

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

var (
	testExchange = common.HexToAddress("0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E")
	testMaker    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testTaker    = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

// orderFilledLog builds a synthetic OrderFilled log with the five data words
// ABI-packed in event order.
func orderFilledLog(maker, taker common.Address, makerAssetID, takerAssetID, makerAmount, takerAmount, fee *big.Int) types.Log {
	data := make([]byte, 0, orderFilledDataLen)
	for _, v := range []*big.Int{makerAssetID, takerAssetID, makerAmount, takerAmount, fee} {
		data = append(data, common.LeftPadBytes(v.Bytes(), 32)...)
	}
	return types.Log{
		Address: testExchange,
		Topics: []common.Hash{
			OrderFilledTopic,
			common.HexToHash("0xabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabcabc0"),
			common.BytesToHash(maker.Bytes()),
			common.BytesToHash(taker.Bytes()),
		},
		Data:        data,
		BlockNumber: 52_000_000,
		TxHash:      common.HexToHash("0x5555555555555555555555555555555555555555555555555555555555555555"),
		Index:       7,
	}
}

func TestDecodeOrderFilledBuy(t *testing.T) {
	tokenID := big.NewInt(987654321)
	// Maker spends 770000 raw collateral for 1000000 raw tokens.
	lg := orderFilledLog(testMaker, testTaker,
		big.NewInt(0), tokenID,
		big.NewInt(770_000), big.NewInt(1_000_000), big.NewInt(500),
	)

	fill, err := NewDecoder(6, 6).DecodeOrderFilled(lg)
	require.NoError(t, err)

	assert.Equal(t, domain.SideBuy, fill.Side)
	assert.Equal(t, TokenIDHex(tokenID), fill.TokenID)
	assert.Equal(t, "0.77", fill.Price.String())
	assert.Equal(t, "1", fill.Size.String())
	assert.Equal(t, "0.0005", fill.Fee.String())
	assert.Equal(t, lg.TxHash.Hex(), fill.TxHash)
	assert.Equal(t, uint64(7), fill.LogIndex)
	assert.Equal(t, uint64(52_000_000), fill.BlockNumber)
	assert.Equal(t, testMaker.Hex(), fill.Maker)
	assert.Equal(t, testTaker.Hex(), fill.Taker)
}

func TestDecodeOrderFilledSell(t *testing.T) {
	tokenID := big.NewInt(987654321)
	// Maker spends 2000000 raw tokens for 900000 raw collateral.
	lg := orderFilledLog(testMaker, testTaker,
		tokenID, big.NewInt(0),
		big.NewInt(2_000_000), big.NewInt(900_000), big.NewInt(0),
	)

	fill, err := NewDecoder(6, 6).DecodeOrderFilled(lg)
	require.NoError(t, err)

	assert.Equal(t, domain.SideSell, fill.Side)
	assert.Equal(t, TokenIDHex(tokenID), fill.TokenID)
	assert.Equal(t, "0.45", fill.Price.String())
	assert.Equal(t, "2", fill.Size.String())
}

func TestDecodeOrderFilledSideNeverFromAmounts(t *testing.T) {
	// A SELL where the collateral amount dwarfs the token amount must still
	// decode as SELL because makerAssetId is non-zero.
	tokenID := big.NewInt(42)
	lg := orderFilledLog(testMaker, testTaker,
		tokenID, big.NewInt(0),
		big.NewInt(1_000), big.NewInt(990_000_000), big.NewInt(0),
	)

	fill, err := NewDecoder(6, 6).DecodeOrderFilled(lg)
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, fill.Side)
}

func TestDecodeOrderFilledDecimalScales(t *testing.T) {
	// The same economic trade expressed at different token scales yields the
	// same price: 770000 raw collateral (6 decimals) for 1000 raw tokens at 3
	// token decimals is 0.77 per token.
	lg := orderFilledLog(testMaker, testTaker,
		big.NewInt(0), big.NewInt(42),
		big.NewInt(770_000), big.NewInt(1_000), big.NewInt(0),
	)

	fill, err := NewDecoder(6, 3).DecodeOrderFilled(lg)
	require.NoError(t, err)
	assert.Equal(t, "0.77", fill.Price.String())
	assert.Equal(t, "1", fill.Size.String())
}

func TestDecodeOrderFilledZeroTokenAmount(t *testing.T) {
	lg := orderFilledLog(testMaker, testTaker,
		big.NewInt(0), big.NewInt(42),
		big.NewInt(770_000), big.NewInt(0), big.NewInt(0),
	)

	fill, err := NewDecoder(6, 6).DecodeOrderFilled(lg)
	require.NoError(t, err)
	assert.True(t, fill.Price.IsZero())
	assert.True(t, fill.Size.IsZero())
}

func TestDecodeOrderFilledEcho(t *testing.T) {
	// The taker being the emitting exchange marks a bookkeeping echo.
	lg := orderFilledLog(testMaker, testExchange,
		big.NewInt(0), big.NewInt(42),
		big.NewInt(770_000), big.NewInt(1_000_000), big.NewInt(0),
	)

	_, err := NewDecoder(6, 6).DecodeOrderFilled(lg)
	assert.ErrorIs(t, err, domain.ErrEchoFill)
}

func TestDecodeOrderFilledMalformed(t *testing.T) {
	d := NewDecoder(6, 6)
	base := orderFilledLog(testMaker, testTaker,
		big.NewInt(0), big.NewInt(42),
		big.NewInt(770_000), big.NewInt(1_000_000), big.NewInt(0),
	)

	t.Run("missing topics", func(t *testing.T) {
		lg := base
		lg.Topics = lg.Topics[:2]
		_, err := d.DecodeOrderFilled(lg)
		assert.ErrorIs(t, err, domain.ErrMalformedLog)
	})

	t.Run("wrong signature", func(t *testing.T) {
		lg := base
		lg.Topics = append([]common.Hash{}, lg.Topics...)
		lg.Topics[0] = common.HexToHash("0x01")
		_, err := d.DecodeOrderFilled(lg)
		assert.ErrorIs(t, err, domain.ErrMalformedLog)
	})

	t.Run("truncated data", func(t *testing.T) {
		lg := base
		lg.Data = lg.Data[:orderFilledDataLen-1]
		_, err := d.DecodeOrderFilled(lg)
		assert.ErrorIs(t, err, domain.ErrMalformedLog)
	})
}

func TestTokenIDHex(t *testing.T) {
	assert.Equal(t,
		"0x000000000000000000000000000000000000000000000000000000000000002a",
		TokenIDHex(big.NewInt(42)),
	)

	big256, ok := new(big.Int).SetString("ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff", 16)
	require.True(t, ok)
	assert.Equal(t,
		"0x"+"ffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff",
		TokenIDHex(big256),
	)
}
