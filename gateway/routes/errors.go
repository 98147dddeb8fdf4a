package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"tdcchain/core"
	nativecommon "tdcchain/native/common"
)

var errCallerRequired = errors.New("authenticated caller required")

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	body := errorBody{Error: err.Error()}
	if reason, ok := nativecommon.Reason(err); ok {
		body.Reason = reason
	}
	writeJSON(w, status, body)
}

// statusFor maps the ledger error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errCallerRequired):
		return http.StatusUnauthorized
	case errors.Is(err, nativecommon.ErrUnauthorized), errors.Is(err, nativecommon.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, nativecommon.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, nativecommon.ErrPreconditionFailed), errors.Is(err, core.ErrDeploymentConflict):
		return http.StatusConflict
	case errors.Is(err, nativecommon.ErrInvalidAmount),
		errors.Is(err, nativecommon.ErrInvalidCount),
		errors.Is(err, nativecommon.ErrInvalidRecipient),
		errors.Is(err, core.ErrKindMismatch),
		errors.Is(err, core.ErrInvalidLedgerName),
		errors.Is(err, core.ErrUnknownKind),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

type badRequest struct{ msg string }

func (e badRequest) Error() string        { return e.msg }
func (e badRequest) Is(target error) bool { return target == errBadRequest }

func invalid(msg string) error { return badRequest{msg: msg} }

func (h *ledgerRoutes) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("ledger request failed", "path", r.URL.Path, "error", err)
		writeJSONError(w, status, errors.New("internal error"))
		return
	}
	writeJSONError(w, status, err)
}
