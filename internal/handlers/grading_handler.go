package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/exam-portal/exam-service/internal/models"
	"github.com/exam-portal/exam-service/internal/repositories"
	"github.com/exam-portal/exam-service/internal/services"
	"github.com/exam-portal/exam-service/internal/utils"
	"github.com/exam-portal/exam-service/internal/validator"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	attemptService services.AttemptService
	validator      *validator.Validator
}

func NewGradingHandler(
	gradingService services.GradingService,
	attemptService services.AttemptService,
	validator *validator.Validator,
	logger utils.Logger,
) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		attemptService: attemptService,
		validator:      validator,
	}
}

// ListAttempts lists attempts waiting for grading
// @Summary List attempts for grading
// @Tags grading
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /grading/attempts [get]
func (h *GradingHandler) ListAttempts(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	limit, offset := parsePagination(c)
	filters := repositories.AttemptFilters{
		Limit:  limit,
		Offset: offset,
	}
	if raw := c.Query("exam_id"); raw != "" {
		examID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil || examID == 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid exam_id parameter",
				Details: raw,
			})
			return
		}
		id := uint(examID)
		filters.ExamID = &id
	}
	if status := c.Query("status"); status != "" {
		filters.Status = []models.AttemptStatus{models.AttemptStatus(status)}
	}

	attempts, total, err := h.gradingService.ListForGrading(c.Request.Context(), userID, filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Data: gin.H{"attempts": attempts, "total": total},
	})
}

// GetAttempt retrieves a submitted attempt with answers for review
// @Summary Get attempt for grading
// @Tags grading
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Router /grading/attempts/{id} [get]
func (h *GradingHandler) GetAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	attempt, err := h.attemptService.GetByID(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// AutoGradeAttempt runs the auto-grader over a submitted attempt
// @Summary Auto-grade attempt
// @Tags grading
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AutoGradeResult
// @Failure 409 {object} ErrorResponse
// @Router /grading/attempts/{id}/auto [post]
func (h *GradingHandler) AutoGradeAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Auto-grading attempt", "attempt_id", id)

	result, err := h.gradingService.AutoGradeAttempt(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GradeAttempt applies a batch of manual grades to one attempt
// @Summary Manually grade attempt
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param grades body services.ManualGradeBatchRequest true "Grades"
// @Success 200 {object} services.BatchResult
// @Failure 422 {object} ErrorResponse
// @Router /grading/attempts/{id}/manual [post]
func (h *GradingHandler) GradeAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req services.ManualGradeBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Manually grading attempt", "attempt_id", id, "grades", len(req.Grades))

	result, err := h.gradingService.GradeAttempt(c.Request.Context(), id, &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GradeAnswer applies one manual grade
// @Summary Manually grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param grade body services.ManualGradeRequest true "Grade"
// @Success 200 {object} SuccessResponse
// @Failure 422 {object} ErrorResponse
// @Router /grading/answers [post]
func (h *GradingHandler) GradeAnswer(c *gin.Context) {
	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	var req services.ManualGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.gradingService.GradeAnswer(c.Request.Context(), &req, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer graded"})
}

// CancelAttempt voids an attempt
// @Summary Cancel attempt
// @Tags grading
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse
// @Failure 409 {object} ErrorResponse
// @Router /grading/attempts/{id}/cancel [post]
func (h *GradingHandler) CancelAttempt(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Cancelling attempt", "attempt_id", id)

	if err := h.attemptService.Cancel(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Attempt cancelled"})
}

// GetStats reports grading progress for an exam
// @Summary Get grading stats
// @Tags grading
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} repositories.GradingStats
// @Router /grading/exams/{id}/stats [get]
func (h *GradingHandler) GetStats(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	stats, err := h.gradingService.GetGradingStats(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ExportScores downloads the exam's score sheet as an xlsx workbook
// @Summary Export scores
// @Tags grading
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} binary
// @Router /grading/exams/{id}/export [get]
func (h *GradingHandler) ExportScores(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	userID, ok := h.requireUserID(c)
	if !ok {
		return
	}

	h.LogRequest(c, "Exporting exam scores", "exam_id", id)

	workbook, err := h.gradingService.ExportScores(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("exam-%d-scores-%s.xlsx", id, time.Now().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", workbook)
}
