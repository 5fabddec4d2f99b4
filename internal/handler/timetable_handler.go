package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uni-edt/timetable-api/internal/dto"
	"github.com/uni-edt/timetable-api/internal/service"
	appErrors "github.com/uni-edt/timetable-api/pkg/errors"
	"github.com/uni-edt/timetable-api/pkg/response"
)

// TimetableHandler manages generation, reads, edits, and export of
// weekly timetables.
type TimetableHandler struct {
	generator *service.TimetableGeneratorService
	validator *service.SessionValidatorService
	service   *service.TimetableService
}

// NewTimetableHandler constructs handler.
func NewTimetableHandler(generator *service.TimetableGeneratorService, validator *service.SessionValidatorService, svc *service.TimetableService) *TimetableHandler {
	return &TimetableHandler{generator: generator, validator: validator, service: svc}
}

// Generate godoc
// @Summary Generate the weekly timetable
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.generator.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetWeek godoc
// @Summary Get every group's timetable for a week
// @Tags Timetables
// @Produce json
// @Param week path string true "Week reference (YYYY-Www)"
// @Success 200 {object} response.Envelope
// @Router /timetable/week/{week} [get]
func (h *TimetableHandler) GetWeek(c *gin.Context) {
	views, err := h.service.GetWeek(c.Request.Context(), c.Param("week"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, views, nil)
}

// GetGroupWeek godoc
// @Summary Get one group's timetable for a week
// @Tags Timetables
// @Produce json
// @Param groupId path string true "Group ID"
// @Param week path string true "Week reference (YYYY-Www)"
// @Success 200 {object} response.Envelope
// @Router /timetable/{groupId}/{week} [get]
func (h *TimetableHandler) GetGroupWeek(c *gin.Context) {
	view, err := h.service.GetGroupWeek(c.Request.Context(), c.Param("groupId"), c.Param("week"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// MoveSession godoc
// @Summary Move a session to another day, slot, or room
// @Tags Timetables
// @Accept json
// @Produce json
// @Param sessionId path string true "Session ID"
// @Param payload body dto.MoveSessionRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /timetable/session/{sessionId} [put]
func (h *TimetableHandler) MoveSession(c *gin.Context) {
	var req dto.MoveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.service.MoveSession(c.Request.Context(), c.Param("sessionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, session, nil)
}

// ValidateSession godoc
// @Summary Validate a candidate session placement
// @Tags Timetables
// @Accept json
// @Produce json
// @Param excludeSessionId query string false "Session to exclude from conflict detection"
// @Param payload body dto.SessionPlacement true "Session placement"
// @Success 200 {object} response.Envelope
// @Router /timetable/validate [post]
func (h *TimetableHandler) ValidateSession(c *gin.Context) {
	var placement dto.SessionPlacement
	if err := c.ShouldBindJSON(&placement); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.validator.Inspect(c.Request.Context(), placement, c.Query("excludeSessionId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a group's weekly timetable and its sessions
// @Tags Timetables
// @Param groupId path string true "Group ID"
// @Param week path string true "Week reference (YYYY-Www)"
// @Success 204
// @Router /timetable/{groupId}/{week} [delete]
func (h *TimetableHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("groupId"), c.Param("week")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export a group's weekly timetable as CSV or PDF
// @Tags Timetables
// @Produce octet-stream
// @Param groupId path string true "Group ID"
// @Param week path string true "Week reference (YYYY-Www)"
// @Param format query string false "Export format (csv or pdf)"
// @Success 200 {file} binary
// @Router /timetable/{groupId}/{week}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	result, err := h.service.Export(c.Request.Context(), c.Param("groupId"), c.Param("week"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename="+result.Filename)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}
