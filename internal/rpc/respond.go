package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/roach88/ledgermsg/internal/engine"
	"github.com/roach88/ledgermsg/internal/ir"
	"github.com/roach88/ledgermsg/internal/ledger"
	"github.com/roach88/ledgermsg/internal/program"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
	Entry *ir.Entry `json:"entry,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeFailure maps err to a status code and writes it. entry is the
// failed entry for instruction failures, nil otherwise.
func writeFailure(w http.ResponseWriter, err error, entry *ir.Entry) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: err.Error()}, Entry: entry})
}

func statusFor(err error) (int, string) {
	var rej *engine.RejectError
	if errors.As(err, &rej) {
		switch rej.Code {
		case engine.ErrCodeInvalidSignature:
			return http.StatusUnauthorized, string(rej.Code)
		case engine.ErrCodeDuplicateTransaction:
			return http.StatusConflict, string(rej.Code)
		case engine.ErrCodeStopped:
			return http.StatusServiceUnavailable, string(rej.Code)
		}
		return http.StatusBadRequest, string(rej.Code)
	}

	if code, ok := program.CodeOf(err); ok {
		switch code {
		case program.UnauthorizedSender:
			return http.StatusForbidden, code.String()
		case program.InvalidMessageIndex:
			return http.StatusConflict, code.String()
		}
		return http.StatusBadRequest, code.String()
	}

	if code, ok := ledger.CodeOf(err); ok {
		switch code {
		case ledger.AccountAlreadyInUse:
			return http.StatusConflict, string(code)
		case ledger.AccountNotInitialized:
			return http.StatusNotFound, string(code)
		case ledger.InsufficientFunds:
			return http.StatusPaymentRequired, string(code)
		case ledger.InvalidInstructionData:
			return http.StatusBadRequest, string(code)
		}
		return http.StatusUnprocessableEntity, string(code)
	}

	return http.StatusInternalServerError, "InternalError"
}
