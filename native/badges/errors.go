package badges

import (
	"errors"
	"fmt"

	nativecommon "tdcchain/native/common"
)

const moduleName = "badges"

var (
	errNilState = errors.New("badges engine: state not configured")

	ErrNotMinted     = fmt.Errorf("badges: token %w", nativecommon.ErrNotFound)
	ErrNotOwner      = fmt.Errorf("badges: %w", nativecommon.ErrNotOwner)
	ErrInvalidCount  = fmt.Errorf("badges: %w: exactly one badge per mint", nativecommon.ErrInvalidCount)
	ErrZeroRecipient = fmt.Errorf("badges: %w: zero address", nativecommon.ErrInvalidRecipient)
	ErrSelfTransfer  = fmt.Errorf("badges: %w: recipient already holds the badge", nativecommon.ErrInvalidRecipient)
	ErrZeroRef       = fmt.Errorf("badges: %w: ledger reference must not be zero", nativecommon.ErrInvalidRecipient)
	ErrNoDirectory   = errors.New("badges: coin directory not configured")

	ErrCollectiblesUnset  = nativecommon.Precondition(moduleName, "collectibles ref unset")
	ErrAlreadyTransferred = nativecommon.Precondition(moduleName, "already transferred")
	ErrNotTransferred     = nativecommon.Precondition(moduleName, "not transferred")
	ErrCoinsUnset         = nativecommon.Precondition(moduleName, "coins ref unset")
)
