package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hanapgigs/escrow-engine/internal/service"
)

type ContractHandler struct {
	contracts *service.ContractService
}

func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// Get handles GET /v1/contracts/{id}.
func (h *ContractHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	contractID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	contract, err := h.contracts.GetContract(r.Context(), act.ID, contractID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, contract)
}

// Sign handles POST /v1/contracts/{id}/signatures. The signing party is
// inferred from the authenticated user.
func (h *ContractHandler) Sign(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	contractID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	contract, err := h.contracts.Sign(r.Context(), act.ID, contractID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, contract)
}
