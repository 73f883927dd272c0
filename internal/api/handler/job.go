package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hanapgigs/escrow-engine/internal/service"
)

type JobHandler struct {
	jobs *service.JobService
}

func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

type createJobRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DurationDays int32  `json:"duration_days"`
}

// Create handles POST /v1/jobs.
func (h *JobHandler) Create(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}

	var req createJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}

	job, err := h.jobs.CreateJob(r.Context(), service.CreateJobCmd{
		EmployerID:   act.ID,
		Title:        req.Title,
		Description:  req.Description,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		RespondError(w, r, http.StatusBadRequest, "request/invalid-job", err.Error())
		return
	}
	RespondJSON(w, http.StatusCreated, job)
}

// Get handles GET /v1/jobs/{id}.
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	jobID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, job)
}

type placeBidRequest struct {
	AmountCentavos int64  `json:"amount_centavos"`
	CoverNote      string `json:"cover_note"`
}

// PlaceBid handles POST /v1/jobs/{id}/bids.
func (h *JobHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	jobID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if req.AmountCentavos <= 0 {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "amount_centavos must be positive")
		return
	}

	bid, err := h.jobs.PlaceBid(r.Context(), service.PlaceBidCmd{
		WorkerID:       act.ID,
		JobID:          jobID,
		AmountCentavos: req.AmountCentavos,
		CoverNote:      req.CoverNote,
	})
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusCreated, bid)
}

// ListBids handles GET /v1/jobs/{id}/bids.
func (h *JobHandler) ListBids(w http.ResponseWriter, r *http.Request) {
	act, err := requestActor(r)
	if err != nil {
		RespondError(w, r, http.StatusUnauthorized, "auth/invalid-context", err.Error())
		return
	}
	jobID, err := parseIDParam(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-id", err.Error())
		return
	}

	bids, err := h.jobs.ListBids(r.Context(), act.ID, jobID)
	if err != nil {
		RespondServiceError(w, r, err)
		return
	}
	RespondJSON(w, http.StatusOK, bids)
}
