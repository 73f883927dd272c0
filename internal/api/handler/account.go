package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hanapgigs/escrow-engine/internal/service"
)

type AccountHandler struct {
	accounts *service.AccountService
}

func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Create handles POST /v1/accounts. Each user has at most one wallet; a
// second attempt trips the unique constraint and returns 409.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), act.ID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, account)
}

type depositRequest struct {
	AmountCentavos int64  `json:"amount_centavos"`
	ReferenceID    string `json:"reference_id"`
}

// Deposit handles POST /v1/accounts/deposits.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.ReferenceID == "" {
		req.ReferenceID = r.Header.Get("Idempotency-Key")
	}
	if req.ReferenceID == "" {
		RespondError(w, r, http.StatusBadRequest, "request/missing-reference", "reference_id is required")
		return
	}

	tx, err := h.accounts.Deposit(r.Context(), service.DepositCmd{
		UserID:         act.ID,
		AmountCentavos: req.AmountCentavos,
		ReferenceID:    req.ReferenceID,
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, tx)
}

// GetBalance handles GET /v1/accounts/balance.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	account, err := h.accounts.GetBalance(r.Context(), act.ID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, account)
}

// GetStatement handles GET /v1/accounts/statement.
func (h *AccountHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	limit := queryInt32(r, "limit", 50)
	offset := queryInt32(r, "offset", 0)

	txs, err := h.accounts.GetStatement(r.Context(), act.ID, limit, offset)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, txs)
}

func queryInt32(r *http.Request, name string, fallback int32) int32 {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return int32(v)
}
