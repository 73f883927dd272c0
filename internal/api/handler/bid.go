package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hanapgigs/escrow-engine/internal/service"
)

// BidHandler drives the bid lifecycle. The status PATCH is the settlement
// entrypoint: accept moves money, so it runs behind the idempotency
// middleware.
type BidHandler struct {
	settlements *service.SettlementService
	jobs        *service.JobService
}

func NewBidHandler(settlements *service.SettlementService, jobs *service.JobService) *BidHandler {
	return &BidHandler{settlements: settlements, jobs: jobs}
}

type updateBidRequest struct {
	Status string `json:"status"`
}

// UpdateStatus handles PATCH /v1/bids/{id}. Accepted values: accepted,
// rejected, withdrawn.
func (h *BidHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	bidID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	var req updateBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	switch req.Status {
	case "accepted":
		settlement, err := h.settlements.AcceptBid(r.Context(), service.AcceptBidCmd{
			ActorID:     act.ID,
			BidID:       bidID,
			ReferenceID: r.Header.Get("Idempotency-Key"),
		})
		if err != nil {
			RespondServiceError(w, r, err)
			return
		}
		RespondJSON(w, http.StatusOK, settlement)
	case "rejected":
		bid, err := h.settlements.RejectBid(r.Context(), act.ID, bidID)
		if err != nil {
			RespondServiceError(w, r, err)
			return
		}
		RespondJSON(w, http.StatusOK, bid)
	case "withdrawn":
		bid, err := h.settlements.WithdrawBid(r.Context(), act.ID, bidID)
		if err != nil {
			RespondServiceError(w, r, err)
			return
		}
		RespondJSON(w, http.StatusOK, bid)
	default:
		RespondError(w, r, http.StatusBadRequest, "request/invalid-status",
			"status must be one of: accepted, rejected, withdrawn")
	}
}

// Get handles GET /v1/bids/{id}.
func (h *BidHandler) Get(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	bidID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	bid, err := h.jobs.GetBid(r.Context(), act.ID, bidID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, bid)
}
