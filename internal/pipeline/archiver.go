package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/alanyoungcy/polyindexer/internal/domain"
)

// Archiver writes the raw logs of a persisted range to object storage as CSV,
// keeping an audit trail of the exact on-chain input behind each range.
type Archiver struct {
	writer domain.BlobWriter
	logger *slog.Logger
}

// NewArchiver creates an Archiver backed by the given blob writer.
func NewArchiver(writer domain.BlobWriter, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveRange uploads the raw logs of [fromBlock, toBlock] under
// rawlogs/{stream}/{from}-{to}-{uuid}.csv. The uuid suffix keeps re-ingested
// ranges from overwriting earlier uploads.
func (a *Archiver) ArchiveRange(ctx context.Context, streamKey string, fromBlock, toBlock uint64, logs []types.Log) error {
	data, err := logsToCSV(logs)
	if err != nil {
		return fmt.Errorf("pipeline: encode raw logs: %w", err)
	}

	path := fmt.Sprintf("rawlogs/%s/%d-%d-%s.csv", streamKey, fromBlock, toBlock, uuid.NewString())
	if err := a.writer.Put(ctx, path, bytes.NewReader(data), "text/csv"); err != nil {
		return fmt.Errorf("pipeline: upload raw logs to %s: %w", path, err)
	}

	a.logger.Debug("raw range archived",
		slog.String("path", path),
		slog.Int("logs", len(logs)),
	)
	return nil
}

// logsToCSV flattens raw logs to CSV with a header row. Topics are joined
// into a single column; data is hex-encoded.
func logsToCSV(logs []types.Log) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"block_number", "tx_hash", "log_index", "address", "topic0", "topic1", "topic2", "topic3", "data"}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, lg := range logs {
		row := make([]string, 0, len(header))
		row = append(row,
			strconv.FormatUint(lg.BlockNumber, 10),
			lg.TxHash.Hex(),
			strconv.FormatUint(uint64(lg.Index), 10),
			lg.Address.Hex(),
		)
		for i := 0; i < 4; i++ {
			if i < len(lg.Topics) {
				row = append(row, lg.Topics[i].Hex())
			} else {
				row = append(row, "")
			}
		}
		row = append(row, "0x"+hex.EncodeToString(lg.Data))
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	return buf.Bytes(), w.Error()
}
