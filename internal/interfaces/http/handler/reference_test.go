package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sgpp/costrecovery/internal/domain/indexes"
	"github.com/sgpp/costrecovery/internal/domain/ledger"
	"github.com/sgpp/costrecovery/internal/domain/production"
	"github.com/sgpp/costrecovery/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRateStore struct {
	fakeRateResolver
}

func (s *fakeRateStore) Save(_ context.Context, rate indexes.Rate) error {
	s.rates[rateKey(rate.Kind, rate.Year, rate.Month)] = rate
	return nil
}

type fakeReportStore struct {
	*fakeReportSource
}

func (s *fakeReportStore) Save(_ context.Context, report production.Report) error {
	s.put(report)
	return nil
}

func setupReferenceRouter(t *testing.T) (*gin.Engine, *fakeRateStore, *fakeReportStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rates := &fakeRateStore{fakeRateResolver{rates: make(map[string]indexes.Rate)}}
	reports := &fakeReportStore{newFakeReportSource()}

	router := gin.New()
	NewReferenceHandler(rates, reports).RegisterRoutes(router.Group("/api/v1"))
	return router, rates, reports
}

func TestReferenceHandler_UpsertIndexRate(t *testing.T) {
	router, rates, _ := setupReferenceRouter(t)

	body := map[string]interface{}{
		"kind":    "IPCA",
		"year":    2023,
		"month":   4,
		"percent": "0.61",
	}
	w := performJSON(t, router, http.MethodPut, "/api/v1/index-rates", body)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)

	stored, ok := rates.rates[rateKey(indexes.KindIPCA, 2023, time.April)]
	require.True(t, ok)
	assert.True(t, stored.Percent.Equal(dec("0.61")))
}

func TestReferenceHandler_UpsertIndexRate_UnknownKind(t *testing.T) {
	router, _, _ := setupReferenceRouter(t)

	body := map[string]interface{}{
		"kind":    "SELIC",
		"year":    2023,
		"month":   4,
		"percent": "0.61",
	}
	w := performJSON(t, router, http.MethodPut, "/api/v1/index-rates", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
}

func TestReferenceHandler_GetIndexRate(t *testing.T) {
	router, rates, _ := setupReferenceRouter(t)

	rates.rates[rateKey(indexes.KindIGPM, 2023, time.April)] = indexes.Rate{
		Kind:    indexes.KindIGPM,
		Year:    2023,
		Month:   time.April,
		Percent: dec("0.95"),
	}

	w := performJSON(t, router, http.MethodGet, "/api/v1/index-rates/IGPM/2023/4", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	require.True(t, resp.Success)
}

func TestReferenceHandler_GetIndexRate_NotPublished(t *testing.T) {
	router, _, _ := setupReferenceRouter(t)

	w := performJSON(t, router, http.MethodGet, "/api/v1/index-rates/IPCA/2023/4", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeIndexNotPublished, resp.Error.Code)
}

func TestReferenceHandler_GetIndexRate_BadMonth(t *testing.T) {
	router, _, _ := setupReferenceRouter(t)

	w := performJSON(t, router, http.MethodGet, "/api/v1/index-rates/IPCA/2023/13", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReferenceHandler_UpsertProductionReport(t *testing.T) {
	router, _, reports := setupReferenceRouter(t)

	body := map[string]interface{}{
		"contract_id": "C-1",
		"field_id":    "F-1",
		"year":        2023,
		"month":       3,
		"volume":      "120000",
		"capacity":    "80000",
	}
	w := performJSON(t, router, http.MethodPut, "/api/v1/production-reports", body)

	assert.Equal(t, http.StatusOK, w.Code)

	stored, err := reports.Get(context.Background(), "C-1", "F-1", ledger.NewPeriod(2023, time.March))
	require.NoError(t, err)
	assert.True(t, stored.Capacity.Equal(dec("80000")))
}

func TestReferenceHandler_UpsertProductionReport_NegativeCapacity(t *testing.T) {
	router, _, _ := setupReferenceRouter(t)

	body := map[string]interface{}{
		"contract_id": "C-1",
		"field_id":    "F-1",
		"year":        2023,
		"month":       3,
		"volume":      "120000",
		"capacity":    "-1",
	}
	w := performJSON(t, router, http.MethodPut, "/api/v1/production-reports", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeInvalidInput, resp.Error.Code)
}
