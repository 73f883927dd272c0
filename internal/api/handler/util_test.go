package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hanapgigs/escrow-engine/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(t *testing.T, err error) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("POST", "/v1/bids/test", nil)
	RespondServiceError(w, r, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestRespondServiceErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{domain.ErrUnauthorized, http.StatusForbidden},
		{domain.ErrBidNotFound, http.StatusNotFound},
		{domain.ErrJobNotFound, http.StatusNotFound},
		{domain.ErrProjectNotFound, http.StatusNotFound},
		{domain.ErrContractNotFound, http.StatusNotFound},
		{domain.ErrAccountNotFound, http.StatusNotFound},
		{domain.ErrJobNotOpen, http.StatusConflict},
		{domain.ErrInvalidBidState, http.StatusConflict},
		{domain.ErrInvalidProjectState, http.StatusConflict},
		{domain.ErrInvalidContractState, http.StatusConflict},
		{domain.ErrAlreadySigned, http.StatusConflict},
		{domain.ErrReferenceInUse, http.StatusConflict},
		{domain.ErrDepositBelowMinimum, http.StatusUnprocessableEntity},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w, _ := respond(t, tc.err)
		assert.Equal(t, tc.status, w.Code, "error %v", tc.err)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	}
}

func TestRespondServiceErrorWrappedSentinel(t *testing.T) {
	w, _ := respond(t, fmt.Errorf("lock job: %w", domain.ErrJobNotOpen))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRespondServiceErrorInsufficientFunds(t *testing.T) {
	w, body := respond(t, &domain.InsufficientFundsError{
		RequiredCentavos: 11000,
		CurrentCentavos:  10000,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, float64(11000), body["required_centavos"])
	assert.Equal(t, float64(10000), body["current_centavos"])
	assert.Contains(t, body["type"], "insufficient-funds")
}

func TestRespondServiceErrorPostgres(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{"23505", http.StatusConflict},
		{"23503", http.StatusBadRequest},
		{"23514", http.StatusBadRequest},
		{"23502", http.StatusBadRequest},
		{"57014", http.StatusInternalServerError}, // unmapped codes fall through
	}
	for _, tc := range cases {
		w, _ := respond(t, &pgconn.PgError{Code: tc.code})
		assert.Equal(t, tc.status, w.Code, "pg code %s", tc.code)
	}
}

func TestParseIDParam(t *testing.T) {
	id, err := parseIDParam("0b37d99e-67a7-4b8f-9fd2-7c3b4e3a8a90")
	require.NoError(t, err)
	assert.Equal(t, "0b37d99e-67a7-4b8f-9fd2-7c3b4e3a8a90", id.String())

	_, err = parseIDParam("not-a-uuid")
	assert.Error(t, err)
}
