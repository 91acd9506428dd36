package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweetline/sweetline/internal/shared"
)

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("distribution: get: %w", shared.ErrNotFound), http.StatusNotFound},
		{shared.ErrInvalidStateTransition, http.StatusConflict},
		{shared.ErrIdempotencyConflict, http.StatusConflict},
		{shared.ErrMissingReason, http.StatusUnprocessableEntity},
		{shared.ErrInvalidQuantity, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: bad", ErrMalformedBody), http.StatusBadRequest},
		{shared.ErrUnauthenticated, http.StatusUnauthorized},
		{ErrForbidden, http.StatusForbidden},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
	}
}

func TestRespondErrorInsufficientStockCarriesDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fmt.Errorf("approve: %w", &shared.InsufficientStockError{
		Kind: shared.StockKindFinishedGood, ID: 9, Requested: 100, Available: 30,
	}))

	require.Equal(t, http.StatusConflict, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.InsufficientStock, 1)
	require.Equal(t, int64(9), body.InsufficientStock[0].ID)
	require.Equal(t, float64(30), body.InsufficientStock[0].Available)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("pq: connection refused"))
	require.NotContains(t, rec.Body.String(), "connection refused")
}

type sampleRequest struct {
	Quantity float64 `json:"quantity" validate:"gt=0"`
	Reason   string  `json:"reason" validate:"required"`
}

func TestDecodeAndValidate(t *testing.T) {
	v := validator.New()

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":0}`))
	var dst sampleRequest
	err := DecodeAndValidate(req, v, &dst)
	require.ErrorIs(t, err, shared.ErrValidation)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	require.Contains(t, vErr.Fields, "sampleRequest.Quantity")
	require.Contains(t, vErr.Fields, "sampleRequest.Reason")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":`))
	require.ErrorIs(t, DecodeAndValidate(req, v, &dst), ErrMalformedBody)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"quantity":2,"reason":"damaged"}`))
	require.NoError(t, DecodeAndValidate(req, v, &dst))
	require.Equal(t, float64(2), dst.Quantity)
}
