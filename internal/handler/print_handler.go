// internal/handler/print_handler.go
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"pos-print-bridge/internal/model"
	"pos-print-bridge/internal/repository"
	"pos-print-bridge/internal/service"
	"pos-print-bridge/internal/utils"
)

// PrintHandler handles print requests and the job journal
type PrintHandler struct {
	dispatcher *service.Dispatcher
	jobs       repository.JobRepository
	logger     *utils.ServiceLogger
}

// NewPrintHandler creates a new print handler
func NewPrintHandler(dispatcher *service.Dispatcher, jobs repository.JobRepository, logger *zap.Logger) *PrintHandler {
	return &PrintHandler{
		dispatcher: dispatcher,
		jobs:       jobs,
		logger:     utils.NewServiceLogger(logger, "print-handler"),
	}
}

// RegisterRoutes registers print and job routes
func (h *PrintHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/print", h.Print)
	router.POST("/print/sample", h.PrintSample)

	jobs := router.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/stats", h.GetJobStats)
		jobs.GET("/:job_id", h.GetJob)
	}
}

// Print prints a receipt JSON document
// @Summary Print a receipt
// @Description Renders the receipt JSON and sends it to the connected printer, network first
// @Tags Print
// @Accept json
// @Produce json
// @Param receipt body object true "Receipt JSON (array of blocks or object with data)"
// @Success 200 {object} utils.APIResponse{data=model.PrintResult} "Receipt printed"
// @Failure 400 {object} utils.APIResponse "Invalid receipt"
// @Failure 429 {object} utils.APIResponse "Printer busy"
// @Failure 503 {object} utils.APIResponse "Printer not connected"
// @Failure 502 {object} utils.APIResponse "Printer error"
// @Router /print [post]
func (h *PrintHandler) Print(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBridgeBody))
	if err != nil || len(body) == 0 {
		utils.ErrorResponse(c, http.StatusBadRequest, "Receipt body is required", err)
		return
	}

	result, err := h.dispatcher.HandlePrintRequest(c.Request.Context(), model.JobSourceAPI, json.RawMessage(body))
	if err != nil {
		utils.PrintErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// PrintSample prints the built-in demo receipt
// @Summary Print the sample receipt
// @Tags Print
// @Produce json
// @Param transport query string false "Transport" Enums(bluetooth, network)
// @Success 200 {object} utils.APIResponse{data=model.PrintResult} "Sample printed"
// @Failure 400 {object} utils.APIResponse "Unknown transport"
// @Failure 503 {object} utils.APIResponse "Printer not connected"
// @Router /print/sample [post]
func (h *PrintHandler) PrintSample(c *gin.Context) {
	transport := model.TransportType(c.DefaultQuery("transport", string(model.TransportNone)))
	switch transport {
	case model.TransportNone, model.TransportBluetooth, model.TransportNetwork:
	default:
		utils.ErrorResponse(c, http.StatusBadRequest, "Unknown transport", nil)
		return
	}

	result, err := h.dispatcher.PrintSample(c.Request.Context(), transport)
	if err != nil {
		utils.PrintErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, result.Message, result)
}

// GetJob returns one journaled print job
// @Summary Get print job
// @Tags Jobs
// @Produce json
// @Param job_id path string true "Job ID"
// @Success 200 {object} utils.APIResponse{data=model.PrintJob} "Job retrieved"
// @Failure 400 {object} utils.APIResponse "Invalid job ID"
// @Failure 404 {object} utils.APIResponse "Job not found"
// @Router /jobs/{job_id} [get]
func (h *PrintHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid job ID", err)
		return
	}

	job, err := h.jobs.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			utils.ErrorResponse(c, http.StatusNotFound, "Job not found", err)
			return
		}
		h.logger.Error("Failed to get job", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get job", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Job retrieved successfully", job)
}

// ListJobs lists journaled print jobs
// @Summary List print jobs
// @Tags Jobs
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param per_page query int false "Items per page" default(20)
// @Param status query string false "Filter by status" Enums(pending, printed, failed, rejected)
// @Param source query string false "Filter by source" Enums(bridge, event, api, sample)
// @Param transport query string false "Filter by transport" Enums(none, bluetooth, network)
// @Param start_date query string false "Start date filter (RFC3339)"
// @Param end_date query string false "End date filter (RFC3339)"
// @Success 200 {object} utils.APIResponse{data=object{jobs=[]model.PrintJob,total=int,page=int,per_page=int}} "Jobs retrieved"
// @Failure 500 {object} utils.APIResponse "Internal server error"
// @Router /jobs [get]
func (h *PrintHandler) ListJobs(c *gin.Context) {
	filter := &repository.JobFilter{Page: 1, PerPage: 20}

	if page := c.Query("page"); page != "" {
		if p, err := strconv.Atoi(page); err == nil && p > 0 {
			filter.Page = p
		}
	}
	if perPage := c.Query("per_page"); perPage != "" {
		if pp, err := strconv.Atoi(perPage); err == nil && pp > 0 && pp <= 100 {
			filter.PerPage = pp
		}
	}

	if status := c.Query("status"); status != "" {
		s := model.JobStatus(status)
		filter.Status = &s
	}
	if source := c.Query("source"); source != "" {
		s := model.JobSource(source)
		filter.Source = &s
	}
	if transport := c.Query("transport"); transport != "" {
		t := model.TransportType(transport)
		filter.Transport = &t
	}
	if startDate := c.Query("start_date"); startDate != "" {
		if date, err := time.Parse(time.RFC3339, startDate); err == nil {
			filter.StartDate = &date
		}
	}
	if endDate := c.Query("end_date"); endDate != "" {
		if date, err := time.Parse(time.RFC3339, endDate); err == nil {
			filter.EndDate = &date
		}
	}

	jobs, total, err := h.jobs.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to list jobs", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Jobs retrieved successfully", gin.H{
		"jobs":     jobs,
		"total":    total,
		"page":     filter.Page,
		"per_page": filter.PerPage,
	})
}

// GetJobStats summarizes the journal
// @Summary Print job statistics
// @Tags Jobs
// @Produce json
// @Success 200 {object} utils.APIResponse{data=repository.JobStats} "Statistics retrieved"
// @Router /jobs/stats [get]
func (h *PrintHandler) GetJobStats(c *gin.Context) {
	stats, err := h.jobs.GetStats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to get job statistics", zap.Error(err))
		utils.ErrorResponse(c, http.StatusInternalServerError, "Failed to get job statistics", err)
		return
	}

	utils.SuccessResponse(c, http.StatusOK, "Job statistics retrieved", stats)
}
