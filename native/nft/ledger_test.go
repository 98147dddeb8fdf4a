package nft

import (
	"errors"
	"testing"

	"tdcchain/core/state"
	nativecommon "tdcchain/native/common"
	"tdcchain/storage"
)

func addr(b byte) [20]byte {
	var a [20]byte
	a[19] = b
	return a
}

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	return NewLedger(state.NewManager(db), addr(0xCC))
}

func TestMintAssignsSequentialIDs(t *testing.T) {
	ledger := newTestLedger(t)
	for want := uint64(0); want < 5; want++ {
		id, err := ledger.Mint(addr(byte(want + 1)))
		if err != nil {
			t.Fatalf("mint %d: %v", want, err)
		}
		if id != want {
			t.Fatalf("expected id %d, got %d", want, id)
		}
	}
	supply, err := ledger.TotalSupply()
	if err != nil || supply != 5 {
		t.Fatalf("expected supply 5, got %d err=%v", supply, err)
	}
	if _, err := ledger.Mint([20]byte{}); !errors.Is(err, nativecommon.ErrInvalidRecipient) {
		t.Fatalf("expected zero recipient rejected, got %v", err)
	}
}

func TestMoveAndBurn(t *testing.T) {
	ledger := newTestLedger(t)
	id, err := ledger.Mint(addr(1))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Move(addr(2), addr(3), id); !errors.Is(err, nativecommon.ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}
	if err := ledger.Move(addr(1), addr(2), id); err != nil {
		t.Fatalf("move: %v", err)
	}
	if bal, _ := ledger.BalanceOf(addr(1)); bal != 0 {
		t.Fatalf("expected sender balance 0, got %d", bal)
	}
	if bal, _ := ledger.BalanceOf(addr(2)); bal != 1 {
		t.Fatalf("expected recipient balance 1, got %d", bal)
	}

	previous, err := ledger.Burn(id)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if previous != addr(2) {
		t.Fatalf("unexpected previous owner")
	}
	owner, err := ledger.OwnerOf(id)
	if err != nil || owner != ([20]byte{}) {
		t.Fatalf("expected sentinel owner after burn, got %x err=%v", owner, err)
	}
	if exists, _ := ledger.Exists(id); !exists {
		t.Fatalf("burned token must remain as an audit record")
	}
	if supply, _ := ledger.TotalSupply(); supply != 0 {
		t.Fatalf("expected supply 0 after burn, got %d", supply)
	}
	if _, err := ledger.Burn(id); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected double burn rejected, got %v", err)
	}
	next, err := ledger.Mint(addr(1))
	if err != nil || next != id+1 {
		t.Fatalf("identifiers must never be reused, got %d err=%v", next, err)
	}
}

func TestOwnerOfUnknownToken(t *testing.T) {
	ledger := newTestLedger(t)
	if _, err := ledger.OwnerOf(0); !errors.Is(err, nativecommon.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSupportsInterface(t *testing.T) {
	if !SupportsInterface([4]byte{0x80, 0xac, 0x58, 0xcd}) {
		t.Fatalf("expected ERC-721 support")
	}
	if SupportsInterface([4]byte{0xff, 0xff, 0xff, 0xff}) {
		t.Fatalf("0xffffffff must never be supported")
	}
}
