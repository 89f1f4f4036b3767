package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/storefront/internal/service/reporting"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves sales reports.
type ReportHandler struct {
	reporting *reporting.Service
	logger    *zap.Logger
}

// NewReportHandler constructs the report handler.
func NewReportHandler(reportingSvc *reporting.Service, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reporting: reportingSvc, logger: logger}
}

// Report returns the sales summary for the from/to query range.
func (h *ReportHandler) Report(c *gin.Context) {
	from, to, err := h.reporting.ParseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, "invalid report range", err)
		return
	}

	report, err := h.reporting.Generate(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, "failed to build report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Export streams the sales summary as a spreadsheet.
func (h *ReportHandler) Export(c *gin.Context) {
	from, to, err := h.reporting.ParseRange(c.Query("from"), c.Query("to"))
	if err != nil {
		respondError(c, h.logger, "invalid report range", err)
		return
	}

	report, err := h.reporting.Generate(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.logger, "failed to build report", err)
		return
	}

	filename := fmt.Sprintf("sales-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", xlsxContentType)
	c.Status(http.StatusOK)
	if err := reporting.WriteXLSX(c.Writer, report); err != nil {
		h.logger.Error("failed to write spreadsheet", zap.Error(err))
	}
}
