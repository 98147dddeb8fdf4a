package journal

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"

	"lukechampine.com/blake3"
)

// ErrChainBroken reports a journal entry whose digest does not follow from
// its predecessor.
var ErrChainBroken = errors.New("journal: digest chain broken")

const verifyPageSize = 500

// chainDigest is blake3(prev || sequence || len(type) || type || len(attrs) || attrs).
// Attributes are the JSON encoding stored on the entry, which has sorted keys.
func chainDigest(prev [32]byte, sequence uint64, eventType string, attrs []byte) [32]byte {
	buf := make([]byte, 0, 32+8+8+len(eventType)+len(attrs))
	buf = append(buf, prev[:]...)
	buf = binary.BigEndian.AppendUint64(buf, sequence)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(eventType)))
	buf = append(buf, eventType...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(attrs)))
	buf = append(buf, attrs...)
	return blake3.Sum256(buf)
}

func parseDigest(value string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(value)
	if err != nil || len(raw) != len(out) {
		return out, fmt.Errorf("malformed digest %q", value)
	}
	copy(out[:], raw)
	return out, nil
}

// Verify recomputes the digest chain from the first entry and returns the
// number of entries checked. Sequence gaps count as breaks.
func (j *Journal) Verify(ctx context.Context) (uint64, error) {
	var (
		prev    [32]byte
		checked uint64
		after   uint64
	)
	for {
		var page []Entry
		err := j.db.WithContext(ctx).
			Where("sequence > ?", after).
			Order("sequence ASC").
			Limit(verifyPageSize).
			Find(&page).Error
		if err != nil {
			return checked, fmt.Errorf("journal: verify: %w", err)
		}
		if len(page) == 0 {
			return checked, nil
		}
		for _, entry := range page {
			if entry.Sequence != checked+1 {
				return checked, fmt.Errorf("%w: expected sequence %d, found %d", ErrChainBroken, checked+1, entry.Sequence)
			}
			want := chainDigest(prev, entry.Sequence, entry.Type, []byte(entry.Attributes))
			if hex.EncodeToString(want[:]) != entry.Digest {
				return checked, fmt.Errorf("%w: at sequence %d", ErrChainBroken, entry.Sequence)
			}
			prev = want
			checked++
			after = entry.Sequence
		}
	}
}
