// internal/api/errors.go
package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/fund"
	"github.com/rovshanmuradov/launchpad/internal/graduation"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/trading"
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

type errorMapping struct {
	target error
	status int
	code   string
}

// порядок важен: более конкретные ошибки раньше общих
var errorTable = []errorMapping{
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{storage.ErrNotFound, http.StatusNotFound, "not_found"},
	{storage.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{curve.ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{curve.ErrInvalidConfig, http.StatusBadRequest, "invalid_config"},
	{fund.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{fund.ErrNotGraduated, http.StatusConflict, "not_graduated"},
	{fund.ErrInsufficientFunds, http.StatusUnprocessableEntity, "insufficient_funds"},
	{curve.ErrCurveGraduated, http.StatusConflict, "curve_graduated"},
	{curve.ErrCurveGraduating, http.StatusConflict, "curve_graduating"},
	{curve.ErrStaleQuote, http.StatusConflict, "stale_quote"},
	{storage.ErrDuplicateKey, http.StatusConflict, "duplicate"},
	{trading.ErrSlippageExceeded, http.StatusUnprocessableEntity, "slippage_exceeded"},
	{curve.ErrInsufficientLiquidity, http.StatusUnprocessableEntity, "insufficient_liquidity"},
	{curve.ErrPoolExhausted, http.StatusUnprocessableEntity, "pool_exhausted"},
	{curve.ErrDivisionByZero, http.StatusUnprocessableEntity, "division_by_zero"},
	{trading.ErrInsufficientBalance, http.StatusUnprocessableEntity, "insufficient_balance"},
	{trading.ErrSettlementFailed, http.StatusBadGateway, "settlement_failed"},
	{trading.ErrDeskClosed, http.StatusServiceUnavailable, "unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

func statusFor(err error) (int, string) {
	var notEligible *graduation.NotEligibleError
	if errors.As(err, &notEligible) {
		return http.StatusConflict, "not_eligible"
	}
	var poolErr *graduation.PoolCreationError
	if errors.As(err, &poolErr) {
		return http.StatusBadGateway, "pool_creation_failed"
	}
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	writeJSON(w, status, ErrorResponse{Error: msg, Code: code})
}
