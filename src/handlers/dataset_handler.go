// backend/src/handlers/dataset_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/username/farmadash/backend/src/config"
	"github.com/username/farmadash/backend/src/logger"
	"github.com/username/farmadash/backend/src/models"
	"github.com/username/farmadash/backend/src/processors"
	"github.com/username/farmadash/backend/src/security/validation"
	"github.com/username/farmadash/backend/src/services"
	"github.com/username/farmadash/backend/src/utils"
)

// Query-parameter date format for range filters.
const filterDateFormat = "2006-01-02"

type DatasetHandler struct {
	datasetService services.DatasetService
}

func NewDatasetHandler(service services.DatasetService) *DatasetHandler {
	return &DatasetHandler{
		datasetService: service,
	}
}

// HandleUpload accepts a multipart sales export, validates it and installs it
// as the active dataset.
func (h *DatasetHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := validation.ValidateFileContentByMagicBytes(file); err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	logger.L.Info("Processing sales export upload", "filename", fileHeader.Filename)
	result, err := h.datasetService.LoadDataset(file)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			utils.SendJSONError(w, fmt.Sprintf("Error parsing sales file: %v", err), http.StatusBadRequest)
		} else {
			logger.L.Error("Unexpected error during dataset load", "error", err)
			utils.SendJSONError(w, "Internal server error during load", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// HandleGetRecords returns the filtered normalized table. The response
// carries an ETag derived from the filtered content so unchanged views can be
// served from the client cache.
func (h *DatasetHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	table, err := h.datasetService.FilteredTable(filter)
	if err != nil {
		h.sendServiceError(w, err)
		return
	}

	etag := utils.TableFingerprint(table.Columns, table.Raw)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"columns": table.Columns,
		"records": table.Records,
		"count":   table.Len(),
	})
}

// HandleGetSummary returns the KPI figures for the filtered table.
func (h *DatasetHandler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := h.datasetService.Summary(filter, parseRevenueField(r))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// HandleGetDimensionSummary returns revenue grouped by a categorical
// dimension (product, client, category, city, zone).
func (h *DatasetHandler) HandleGetDimensionSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	dim := processors.Dimension(r.PathValue("dimension"))
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			utils.SendJSONError(w, fmt.Sprintf("invalid limit %q", limitStr), http.StatusBadRequest)
			return
		}
	}

	rows, err := h.datasetService.DimensionSummary(filter, dim, parseRevenueField(r), limit)
	if err != nil {
		if errors.Is(err, services.ErrDimensionUnavailable) {
			utils.SendJSONError(w, err.Error(), http.StatusNotFound)
			return
		}
		h.sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleGetMonthlySeries returns the monthly revenue time series.
func (h *DatasetHandler) HandleGetMonthlySeries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := h.datasetService.MonthlySeries(filter, parseRevenueField(r))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// HandleGetClusters returns the geo-cluster aggregation for the filtered
// table at the requested precision.
func (h *DatasetHandler) HandleGetClusters(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	precision := config.Cfg.GeoClusterPrecision
	if precStr := r.URL.Query().Get("precision"); precStr != "" {
		precision, err = strconv.Atoi(precStr)
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("invalid precision %q", precStr), http.StatusBadRequest)
			return
		}
	}

	buckets, err := h.datasetService.ClusterAggregate(filter, precision, parseRevenueField(r))
	if err != nil {
		h.sendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}

// HandleExport streams the filtered table back out as a ';'-delimited file.
func (h *DatasetHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilterOptions(r)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="ventas_filtradas.csv"`)
	if err := h.datasetService.ExportCSV(w, filter); err != nil {
		// Headers are already out; the best we can do is log.
		logger.L.Error("Failed to stream CSV export", "error", err)
	}
}

func (h *DatasetHandler) sendServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrNoDataset) {
		utils.SendJSONError(w, "no dataset loaded; upload a sales export first", http.StatusConflict)
		return
	}
	logger.L.Error("Dataset service error", "error", err)
	utils.SendJSONError(w, "Internal server error", http.StatusInternalServerError)
}

// parseFilterOptions reads the presentation layer's filter predicates from
// query parameters: start/end date range, invalid-date inclusion toggle and
// the categorical membership filters (repeatable parameters).
func parseFilterOptions(r *http.Request) (services.FilterOptions, error) {
	q := r.URL.Query()
	filter := services.FilterOptions{
		IncludeInvalidDates: q.Get("include_invalid_dates") == "true",
		Categories:          q["category"],
		Products:            q["product"],
		Clients:             q["client"],
		Cities:              q["city"],
		Zones:               q["zone"],
	}

	if startStr := q.Get("start"); startStr != "" {
		start, err := time.Parse(filterDateFormat, startStr)
		if err != nil {
			return filter, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", startStr)
		}
		filter.StartDate = &start
	}
	if endStr := q.Get("end"); endStr != "" {
		end, err := time.Parse(filterDateFormat, endStr)
		if err != nil {
			return filter, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", endStr)
		}
		filter.EndDate = &end
	}
	return filter, nil
}

// parseRevenueField reads the chosen revenue measure, defaulting to the
// invoiced-else-line column.
func parseRevenueField(r *http.Request) models.RevenueField {
	switch r.URL.Query().Get("revenue") {
	case string(models.RevenueInvoiced), "invoiced", "vta":
		return models.RevenueInvoiced
	case string(models.RevenueLine), "line", "val":
		return models.RevenueLine
	}
	return models.RevenueDefault
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.L.Error("Failed to encode JSON response", "error", err)
	}
}
