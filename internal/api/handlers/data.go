package handlers

import (
	"net/http"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/s0_data/quality"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// DataHandler handles data-related API endpoints
// ⭐ SSOT: 데이터 API 핸들러는 이 구조체에서만
type DataHandler struct {
	source      contracts.PriceSource
	qualityGate *quality.QualityGate
	logger      *logger.Logger
}

// NewDataHandler creates a new data handler
func NewDataHandler(source contracts.PriceSource, gate *quality.QualityGate, log *logger.Logger) *DataHandler {
	return &DataHandler{
		source:      source,
		qualityGate: gate,
		logger:      log,
	}
}

// GetInstruments lists instrument codes of the configured source
// GET /api/data/instruments
func (h *DataHandler) GetInstruments(w http.ResponseWriter, r *http.Request) {
	codes, err := h.source.Codes(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list instruments")
		respondError(w, http.StatusInternalServerError, "Failed to list instruments")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(codes),
		"codes": codes,
	})
}

// GetQuality runs the quality gate over the source
// GET /api/data/quality
func (h *DataHandler) GetQuality(w http.ResponseWriter, r *http.Request) {
	report, err := h.qualityGate.Check(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Quality check failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, report)
}
