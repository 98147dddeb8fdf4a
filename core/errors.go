package core

import (
	"errors"
	"fmt"

	nativecommon "tdcchain/native/common"
)

var (
	ErrUnknownLedger      = fmt.Errorf("core: ledger %w", nativecommon.ErrNotFound)
	ErrKindMismatch       = errors.New("core: ledger kind mismatch")
	ErrInvalidLedgerName  = errors.New("core: invalid ledger name")
	ErrUnknownKind        = errors.New("core: unknown ledger kind")
	ErrDeploymentConflict = errors.New("core: ledger name already deployed with a different kind")
)
