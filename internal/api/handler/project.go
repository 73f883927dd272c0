package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/hanapgigs/escrow-engine/internal/service"
	"github.com/jackc/pgx/v5"
)

type ProjectHandler struct {
	escrow *service.EscrowService
	store  service.QueryStore
}

func NewProjectHandler(escrow *service.EscrowService, store service.QueryStore) *ProjectHandler {
	return &ProjectHandler{escrow: escrow, store: store}
}

// Get handles GET /v1/projects/{id}. Visible to either party.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	projectID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	project, err := h.store.Queries().GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			RespondServiceError(w, r, domain.ErrProjectNotFound)
			return
		}
		RespondServiceError(w, r, err)
		return
	}
	if act.ID != project.EmployerID && act.ID != project.WorkerID && act.Role != "admin" {
		RespondServiceError(w, r, domain.ErrUnauthorized)
		return
	}
	RespondJSON(w, http.StatusOK, project)
}

// ListTransactions handles GET /v1/projects/{id}/transactions, the ledger
// trail for one engagement.
func (h *ProjectHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	projectID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	project, err := h.store.Queries().GetProject(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			RespondServiceError(w, r, domain.ErrProjectNotFound)
			return
		}
		RespondServiceError(w, r, err)
		return
	}
	if act.ID != project.EmployerID && act.ID != project.WorkerID && act.Role != "admin" {
		RespondServiceError(w, r, domain.ErrUnauthorized)
		return
	}

	txs, err := h.store.Queries().ListTransactionsByProject(r.Context(), projectID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, txs)
}

// Release handles POST /v1/projects/{id}/release.
func (h *ProjectHandler) Release(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	projectID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	tx, err := h.escrow.ReleaseEscrow(r.Context(), service.ReleaseEscrowCmd{
		ActorID:     act.ID,
		ProjectID:   projectID,
		ReferenceID: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}

// Refund handles POST /v1/projects/{id}/refund. Admin only.
func (h *ProjectHandler) Refund(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	projectID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	tx, err := h.escrow.RefundEscrow(r.Context(), service.RefundEscrowCmd{
		ActorID:     act.ID,
		ActorRole:   act.Role,
		ProjectID:   projectID,
		ReferenceID: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, tx)
}
