package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/farmadash/backend/src/config"
	"github.com/username/farmadash/backend/src/logger"
	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/parsers"
	"github.com/username/farmadash/backend/src/processors"
	"github.com/username/farmadash/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		Port:                "8080",
		LogLevel:            "error",
		MaxUploadSizeBytes:  10 * 1024 * 1024,
		GeoClusterPrecision: 3,
	}
	os.Exit(m.Run())
}

const handlerCSV = "FechaVta;VtaFacturada;Georeferenciado;Ciudad\n" +
	"05/01/2024;100;10.5,-66.9;Caracas\n" +
	"20/01/2024;50;11.0,-66.0;Valencia\n"

func newTestMux(t *testing.T, preload string) *http.ServeMux {
	t.Helper()
	svc := services.NewDatasetService(
		parsers.NewCSVParser(),
		processors.NewNormalizer(3),
		processors.NewGeoClusterAggregator(),
		cache.New(time.Minute, time.Minute),
	)
	if preload != "" {
		_, err := svc.LoadDataset(strings.NewReader(preload))
		require.NoError(t, err)
	}
	h := NewDatasetHandler(svc)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", h.HandleUpload)
	mux.HandleFunc("GET /api/records", h.HandleGetRecords)
	mux.HandleFunc("GET /api/summary", h.HandleGetSummary)
	mux.HandleFunc("GET /api/summary/by/{dimension}", h.HandleGetDimensionSummary)
	mux.HandleFunc("GET /api/clusters", h.HandleGetClusters)
	mux.HandleFunc("GET /api/export", h.HandleExport)
	return mux
}

func TestHandleUpload(t *testing.T) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="ventas.csv"`)
	header.Set("Content-Type", "text/csv")
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(handlerCSV))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	newTestMux(t, "").ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result services.LoadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.RecordCount)
	assert.Equal(t, 2, result.GeocodedCount)
	assert.NotEmpty(t, result.DatasetID)
}

func TestHandleGetClusters(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/clusters?precision=3&revenue=invoiced", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, handlerCSV).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var buckets []models.ClusterBucket
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &buckets))
	require.Len(t, buckets, 2)
	assert.InDelta(t, 100, buckets[0].Revenue, 1e-9)
}

func TestHandleGetClustersBadPrecision(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/clusters?precision=abc", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, handlerCSV).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetSummaryNoDataset(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/summary", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, "").ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleGetDimensionSummary(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/summary/by/city?revenue=invoiced", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, handlerCSV).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var rows []models.DimensionRow
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Caracas", rows[0].Value)
}

func TestHandleGetDimensionSummaryUnavailable(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/summary/by/zone", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, handlerCSV).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetRecordsETag(t *testing.T) {
	mux := newTestMux(t, handlerCSV)

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	again := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	again.Header.Set("If-None-Match", etag)
	rec2 := httptest.NewRecorder()
	mux.ServeHTTP(rec2, again)
	assert.Equal(t, http.StatusNotModified, rec2.Code)
}

func TestHandleExport(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/export", nil)
	rec := httptest.NewRecorder()
	newTestMux(t, handlerCSV).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Body.String(), "FechaVta;VtaFacturada;Georeferenciado;Ciudad")
	assert.Contains(t, rec.Body.String(), "Caracas")
}
