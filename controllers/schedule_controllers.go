package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/services"
	"github.com/shiftline/notifier/utils"
	"gorm.io/gorm"
)

// ScheduleController adalah permukaan untuk modul appointments: menulis dan
// membatalkan deferred jobs. The dispatcher is the only writer of any other
// status transition.
type ScheduleController struct {
	DB *gorm.DB
}

func NewScheduleController(db *gorm.DB) *ScheduleController {
	return &ScheduleController{DB: db}
}

// CreateScheduledNotification -> enqueue a job with a future run_at.
// The payload is validated up front so a malformed intent is rejected here
// instead of failing later inside a dispatcher tick.
func (sc *ScheduleController) CreateScheduledNotification(c *gin.Context) {
	type reqBody struct {
		AppointmentID uint      `json:"appointment_id" binding:"required"`
		RunAt         time.Time `json:"run_at" binding:"required"`
		EmployeeID    *uint     `json:"employee_id"`
		CenterID      *uint     `json:"center_id"`
		StoreID       *uint     `json:"store_id"`
		Payload       string    `json:"payload" binding:"required"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if _, err := services.DecodePayload(body.Payload); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if body.EmployeeID != nil && (body.CenterID != nil || body.StoreID != nil) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("a job targets either an employee or a broadcast scope, not both"))
		return
	}

	job := models.ScheduledNotification{
		AppointmentID: body.AppointmentID,
		RunAt:         body.RunAt,
		EmployeeID:    body.EmployeeID,
		CenterID:      body.CenterID,
		StoreID:       body.StoreID,
		Status:        models.JobStatusPending,
		Payload:       body.Payload,
	}

	if err := sc.DB.Create(&job).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Scheduled notification %d enqueued (run_at=%s)", job.ID, job.RunAt)
	utils.RespondJSON(c, http.StatusCreated, "Scheduled notification created", job)
}

// GetScheduledNotifications -> list, optionally filtered by status
func (sc *ScheduleController) GetScheduledNotifications(c *gin.Context) {
	q := sc.DB.Order("run_at ASC")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.ScheduledNotification
	if err := q.Find(&jobs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Scheduled notifications", jobs)
}

// CancelScheduledNotification -> pending -> canceled. The conditional update
// mirrors the dispatcher claim: once a job is claimed or terminal, the cancel
// loses the race and is rejected.
func (sc *ScheduleController) CancelScheduledNotification(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("job_id"))

	var job models.ScheduledNotification
	if err := sc.DB.First(&job, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	res := sc.DB.Model(&models.ScheduledNotification{}).
		Where("id = ? AND status = ?", job.ID, models.JobStatusPending).
		Update("status", models.JobStatusCanceled)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusConflict, errors.New("job is no longer pending"))
		return
	}

	utils.InfoLogger.Printf("Scheduled notification %d canceled", job.ID)
	utils.RespondJSON(c, http.StatusOK, "Scheduled notification canceled", gin.H{"job_id": job.ID})
}
