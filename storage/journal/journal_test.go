package journal

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"tdcchain/core/events"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(DriverSQLite, filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func ledger(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func TestJournalRecordsEventsInOrder(t *testing.T) {
	j := openTestJournal(t)
	badges := ledger(0xB0)
	coins := ledger(0xC1)

	j.Emit(events.TokenTransfer{Ledger: badges, To: ledger(2), TokenID: 0})
	j.Emit(events.TokenTransfer{Ledger: badges, From: ledger(2), To: ledger(3), TokenID: 0})
	j.Emit(events.BaseURIUpdated{Ledger: coins, URI: "ignored"})

	all, err := j.History(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(1), all[0].Sequence)
	require.Equal(t, uint64(3), all[2].Sequence)

	first := events.TokenTransfer{Ledger: badges}.Event().Attr("ledger")
	onlyBadges, err := j.History(context.Background(), Query{Ledger: first})
	require.NoError(t, err)
	require.Len(t, onlyBadges, 2)

	evt, err := onlyBadges[1].Event()
	require.NoError(t, err)
	require.Equal(t, events.TypeTokenTransfer, evt.Type)
	require.Equal(t, "0", evt.Attr("tokenId"))

	after, err := j.History(context.Background(), Query{After: 2})
	require.NoError(t, err)
	require.Len(t, after, 1)
	require.Equal(t, events.TypeBaseURIUpdated, after[0].Type)
}

func TestJournalResumesSequenceAfterReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(DriverSQLite, path, nil)
	require.NoError(t, err)
	j.Emit(events.TokenTransfer{Ledger: ledger(1), To: ledger(2)})
	require.NoError(t, j.Close())

	reopened, err := Open(DriverSQLite, path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	entry, err := reopened.Append(context.Background(), events.TokenTransfer{Ledger: ledger(1), To: ledger(3), TokenID: 1}.Event())
	require.NoError(t, err)
	require.Equal(t, uint64(2), entry.Sequence)

	checked, err := reopened.Verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(2), checked)
}

func TestJournalVerifyDetectsTampering(t *testing.T) {
	j := openTestJournal(t)
	for i := uint64(0); i < 3; i++ {
		j.Emit(events.TokenTransfer{Ledger: ledger(1), To: ledger(2), TokenID: i})
	}
	checked, err := j.Verify(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(3), checked)

	forged := `{"from":"","ledger":"x","to":"y","tokenId":"9"}`
	require.NoError(t, j.db.Model(&Entry{}).Where("sequence = ?", 2).Update("attributes", forged).Error)
	checked, err = j.Verify(context.Background())
	require.ErrorIs(t, err, ErrChainBroken)
	require.Equal(t, uint64(1), checked)
}

func TestExportParquetWritesEveryEntry(t *testing.T) {
	j := openTestJournal(t)
	for i := uint64(0); i < 5; i++ {
		j.Emit(events.TokenTransfer{Ledger: ledger(1), To: ledger(2), TokenID: i})
	}
	j.Emit(events.BaseURIUpdated{Ledger: ledger(9), URI: "ipfs://x/"})

	var out bytes.Buffer
	rows, err := j.ExportParquet(context.Background(), &out, Query{Ledger: events.TokenTransfer{Ledger: ledger(1)}.Event().Attr("ledger"), Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 5, rows)
	require.True(t, bytes.HasPrefix(out.Bytes(), []byte("PAR1")))
	require.True(t, bytes.HasSuffix(out.Bytes(), []byte("PAR1")))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", nil)
	require.Error(t, err)
}

func TestOpenLogsMaskedDSN(t *testing.T) {
	var buf bytes.Buffer
	dsn := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(DriverSQLite, dsn, slog.New(slog.NewJSONHandler(&buf, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	require.Contains(t, buf.String(), `"driver":"sqlite"`)
	require.Contains(t, buf.String(), `"dsn":"[REDACTED]"`)
	require.NotContains(t, buf.String(), dsn)
}
