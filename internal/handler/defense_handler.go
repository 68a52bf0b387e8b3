package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-defense-api/internal/dto"
	"github.com/noah-isme/thesis-defense-api/internal/models"
	"github.com/noah-isme/thesis-defense-api/internal/service"
	appErrors "github.com/noah-isme/thesis-defense-api/pkg/errors"
	"github.com/noah-isme/thesis-defense-api/pkg/jobs"
	"github.com/noah-isme/thesis-defense-api/pkg/response"
)

type defensePlanner interface {
	RunAutoPlan(ctx context.Context) (*dto.AutoPlanResult, error)
}

type defenseScheduler interface {
	List(ctx context.Context, query dto.DefenseListQuery) ([]models.DefenseScheduleDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.DefenseSchedule, error)
	Create(ctx context.Context, req dto.CreateDefenseRequest) (*models.DefenseSchedule, error)
	Update(ctx context.Context, id string, patch dto.DefenseSchedulePatch) (*models.DefenseSchedule, error)
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) (int64, error)
}

type defenseExporter interface {
	Export(ctx context.Context, format dto.ExportFormat, query dto.DefenseListQuery) (*dto.ExportFile, error)
}

type autoPlanTrigger interface {
	Trigger() (string, error)
}

// DefenseHandler exposes defense planning and schedule management endpoints.
type DefenseHandler struct {
	planner   defensePlanner
	schedules defenseScheduler
	exporter  defenseExporter
	worker    autoPlanTrigger
}

// NewDefenseHandler constructs the handler. worker may be nil when background
// planning is disabled.
func NewDefenseHandler(planner *service.PlannerService, schedules *service.DefenseScheduleService, exporter *service.ExportService, worker *service.AutoPlanWorker) *DefenseHandler {
	h := &DefenseHandler{planner: planner, schedules: schedules, exporter: exporter}
	if worker != nil {
		h.worker = worker
	}
	return h
}

// AutoPlan godoc
// @Summary Run the defense auto-planner
// @Description Completes partially staffed defenses, then schedules every approved thesis without a defense. With async=true the run is queued on the background worker.
// @Tags Defenses
// @Produce json
// @Param async query bool false "Queue the run instead of waiting for it"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /defenses/auto-plan [post]
func (h *DefenseHandler) AutoPlan(c *gin.Context) {
	meta := map[string]interface{}{"triggeredBy": actorID(c)}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.worker == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "background planning is disabled"))
			return
		}
		jobID, err := h.worker.Trigger()
		if err != nil {
			if errors.Is(err, jobs.ErrQueueFull) {
				response.Error(c, appErrors.Clone(appErrors.ErrConflict, "a planning run is already queued"))
				return
			}
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusAccepted, gin.H{"jobId": jobID}, nil, meta)
		return
	}

	// the run outlives a client that disconnects
	result, err := h.planner.RunAutoPlan(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, meta)
}

// List godoc
// @Summary List defense sessions
// @Tags Defenses
// @Produce json
// @Param room query string false "Room"
// @Param professor query string false "Professor sitting on the jury"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Param status query string false "tentative, confirmed or cancelled"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Param order query string false "asc or desc by start time"
// @Success 200 {object} response.Envelope
// @Router /defenses [get]
func (h *DefenseHandler) List(c *gin.Context) {
	var query dto.DefenseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	items, pagination, err := h.schedules.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a defense session
// @Tags Defenses
// @Produce json
// @Param id path string true "Defense ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /defenses/{id} [get]
func (h *DefenseHandler) Get(c *gin.Context) {
	sched, err := h.schedules.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Create godoc
// @Summary Schedule one approved thesis by hand
// @Tags Defenses
// @Accept json
// @Produce json
// @Param payload body dto.CreateDefenseRequest true "Defense payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /defenses [post]
func (h *DefenseHandler) Create(c *gin.Context) {
	var req dto.CreateDefenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid defense payload"))
		return
	}
	sched, err := h.schedules.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sched)
}

// Update godoc
// @Summary Patch a defense session
// @Description Any subset of principal, examinator, supervisor, startTime, endTime, room and status. Moving startTime alone moves endTime with it.
// @Tags Defenses
// @Accept json
// @Produce json
// @Param id path string true "Defense ID"
// @Param payload body dto.DefenseSchedulePatch true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /defenses/{id} [patch]
func (h *DefenseHandler) Update(c *gin.Context) {
	var patch dto.DefenseSchedulePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid defense patch"))
		return
	}
	sched, err := h.schedules.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sched, nil)
}

// Delete godoc
// @Summary Delete a defense session
// @Description The thesis returns to approved and becomes eligible for planning again.
// @Tags Defenses
// @Param id path string true "Defense ID"
// @Success 204
// @Router /defenses/{id} [delete]
func (h *DefenseHandler) Delete(c *gin.Context) {
	if err := h.schedules.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Clear godoc
// @Summary Delete every defense session
// @Description Every thesis is set back to approved.
// @Tags Defenses
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /defenses [delete]
func (h *DefenseHandler) Clear(c *gin.Context) {
	deleted, err := h.schedules.Clear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"deleted": deleted}, nil)
}

// Export godoc
// @Summary Download the defense plan
// @Tags Defenses
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param room query string false "Room"
// @Param professor query string false "Professor sitting on the jury"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /defenses/export [get]
func (h *DefenseHandler) Export(c *gin.Context) {
	var query dto.DefenseListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), dto.ExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV))), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Payload)
}
