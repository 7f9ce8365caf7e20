// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"

	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/trading"
)

const maxBodyBytes = 1 << 16

func (s *Server) listTokensHandler(w http.ResponseWriter, _ *http.Request) {
	mints := s.deps.Tokens.Mints()
	out := make([]TokenResponse, 0, len(mints))
	for _, mint := range mints {
		info, err := s.deps.Tokens.Info(mint)
		if err != nil {
			continue
		}
		out = append(out, tokenResponse(info))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	creator, err := parseKey("creator", req.Creator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	params := launchpad.TokenParams{Creator: creator, Name: req.Name, Symbol: req.Symbol}
	if req.Mint != "" {
		if params.Mint, err = parseKey("mint", req.Mint); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	engine, err := s.deps.Tokens.CreateToken(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.deps.Tokens.Info(engine.Mint())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse(info))
}

func (s *Server) tokenHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, err := s.deps.Tokens.Info(mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse(info))
}

func (s *Server) quoteHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	side, err := parseSide(r.URL.Query().Get("side"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	amount, err := strconv.ParseUint(r.URL.Query().Get("amount"), 10, 64)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: amount must be an unsigned integer", errBadRequest))
		return
	}

	q, err := s.deps.Trader.Quote(mint, side, amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteResponse(q))
}

func (s *Server) tradeHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req TradeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	trader, err := parseKey("trader", req.Trader)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	side, err := parseSide(req.Side)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	fill, err := s.deps.Trader.Execute(r.Context(), trading.Order{
		Mint:               mint,
		Trader:             trader,
		Side:               side,
		Amount:             req.Amount,
		MaxSlippagePercent: req.MaxSlippagePercent,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tradeResponse(fill))
}

func (s *Server) graduationStatusHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.deps.Status.Status(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) graduateHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := s.deps.Graduator.Graduate(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graduationResponse(ev))
}

func (s *Server) fundsHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	available, err := s.deps.Funds.Available(r.Context(), mint)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FundsResponse{Mint: mint.String(), Available: available})
}

func (s *Server) withdrawHandler(w http.ResponseWriter, r *http.Request) {
	mint, err := mintParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req WithdrawRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	creator, err := parseKey("creator", req.Creator)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	wd, err := s.deps.Funds.Withdraw(r.Context(), mint, creator, req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, withdrawalResponse(wd))
}

func mintParam(r *http.Request) (solana.PublicKey, error) {
	return parseKey("mint", chi.URLParam(r, "mint"))
}

func parseKey(field, raw string) (solana.PublicKey, error) {
	if raw == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is required", errBadRequest, field)
	}
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: invalid %s: %v", errBadRequest, field, err)
	}
	return key, nil
}

func parseSide(raw string) (curve.Side, error) {
	switch curve.Side(strings.ToLower(raw)) {
	case curve.SideBuy:
		return curve.SideBuy, nil
	case curve.SideSell:
		return curve.SideSell, nil
	default:
		return "", fmt.Errorf("%w: side must be buy or sell", errBadRequest)
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}
