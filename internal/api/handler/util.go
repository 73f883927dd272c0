package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hanapgigs/escrow-engine/internal/api/middleware"
	"github.com/hanapgigs/escrow-engine/internal/api/problem"
	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

type actor struct {
	ID   uuid.UUID
	Role string
}

func requestActor(r *http.Request) (actor, error) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		return actor{}, errors.New("missing user in auth context")
	}

	actorID, err := uuid.Parse(userID)
	if err != nil {
		return actor{}, errors.New("invalid user_id in auth context")
	}

	return actor{ID: actorID, Role: middleware.UserRoleFromContext(r.Context())}, nil
}

// RespondServiceError maps settlement errors onto HTTP statuses. Ownership
// failures are 403, missing resources 404, state conflicts 409 and
// recoverable funding problems 422 with the amounts attached.
func RespondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if ife, ok := domain.IsInsufficientFunds(err); ok {
		problem.WriteWith(w, r, http.StatusUnprocessableEntity,
			problem.Type("escrow/insufficient-funds"),
			"Insufficient Funds", ife.Error(),
			map[string]any{
				"required_centavos": ife.RequiredCentavos,
				"current_centavos":  ife.CurrentCentavos,
			})
		return
	}

	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		RespondError(w, r, http.StatusForbidden, "settlement/not-owner", err.Error())
	case errors.Is(err, domain.ErrBidNotFound),
		errors.Is(err, domain.ErrJobNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrContractNotFound):
		RespondError(w, r, http.StatusNotFound, "settlement/not-found", err.Error())
	case errors.Is(err, domain.ErrInvalidBidState),
		errors.Is(err, domain.ErrJobNotOpen),
		errors.Is(err, domain.ErrInvalidProjectState),
		errors.Is(err, domain.ErrInvalidContractState),
		errors.Is(err, domain.ErrAlreadySigned):
		RespondError(w, r, http.StatusConflict, "settlement/invalid-state", err.Error())
	case errors.Is(err, domain.ErrReferenceInUse):
		RespondError(w, r, http.StatusConflict, "settlement/reference-in-use", err.Error())
	case errors.Is(err, domain.ErrDepositBelowMinimum):
		RespondError(w, r, http.StatusUnprocessableEntity, "escrow/deposit-below-minimum", err.Error())
	default:
		if status, problemType, message, ok := mapDBError(err); ok {
			RespondError(w, r, status, problemType, message)
			return
		}
		zap.L().Error("unhandled service error",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		RespondError(w, r, http.StatusInternalServerError, "internal-server-error", "unexpected server error")
	}
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}

func parseIDParam(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid id in path")
	}
	return id, nil
}
