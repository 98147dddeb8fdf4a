package journal

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	Sequence   int64  `parquet:"name=sequence, type=INT64"`
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ledger     string `parquet:"name=ledger, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	Digest     string `parquet:"name=digest, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// ExportParquet writes every entry matching q to out as a snappy-compressed
// parquet file and returns the number of rows written. q.After is the
// starting cursor; q.Limit is the page size used while reading.
func (j *Journal) ExportParquet(ctx context.Context, out io.Writer, q Query) (int, error) {
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(out), new(parquetRow), 1)
	if err != nil {
		return 0, fmt.Errorf("journal: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	written := 0
	for {
		page, err := j.History(ctx, q)
		if err != nil {
			pw.WriteStop()
			return written, err
		}
		if len(page) == 0 {
			break
		}
		for _, entry := range page {
			row := &parquetRow{
				Sequence:   int64(entry.Sequence),
				ID:         entry.ID.String(),
				Ledger:     entry.Ledger,
				Type:       entry.Type,
				Attributes: entry.Attributes,
				Digest:     entry.Digest,
				CreatedAt:  entry.CreatedAt.UTC().Format(time.RFC3339Nano),
			}
			if err := pw.Write(row); err != nil {
				pw.WriteStop()
				return written, fmt.Errorf("journal: parquet write: %w", err)
			}
			written++
		}
		q.After = page[len(page)-1].Sequence
	}
	if err := pw.WriteStop(); err != nil {
		return written, fmt.Errorf("journal: parquet flush: %w", err)
	}
	return written, nil
}
