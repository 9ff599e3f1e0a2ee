package Controllers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/shiftline/notifier/controllers"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
)

func setupScheduleRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	scheduleCtrl := controllers.NewScheduleController(db)
	router.POST("/scheduled-notifications", scheduleCtrl.CreateScheduledNotification)
	router.GET("/scheduled-notifications", scheduleCtrl.GetScheduledNotifications)
	router.POST("/scheduled-notifications/:job_id/cancel", scheduleCtrl.CancelScheduledNotification)
	return router
}

func TestScheduledNotificationLifecycle(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	emps := seedCenterEmployees(db, 1, 1)
	router := setupScheduleRouter(db)

	w := doJSON(router, "POST", "/scheduled-notifications", map[string]interface{}{
		"appointment_id": 12,
		"run_at":         time.Now().Add(time.Hour),
		"employee_id":    emps[0].ID,
		"payload":        `{"title":"Appointment reminder","message":"Customer arrives at 3pm"}`,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	jobID := int(createResp["data"].(map[string]interface{})["id"].(float64))

	var job models.ScheduledNotification
	assert.NoError(t, db.First(&job, jobID).Error)
	assert.Equal(t, models.JobStatusPending, job.Status)

	// Cancel while pending
	cancelURL := fmt.Sprintf("/scheduled-notifications/%d/cancel", jobID)
	w = doJSON(router, "POST", cancelURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	assert.NoError(t, db.First(&job, jobID).Error)
	assert.Equal(t, models.JobStatusCanceled, job.Status)

	// Cancel again: the job is no longer pending.
	w = doJSON(router, "POST", cancelURL, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateScheduledNotificationRejectsBadPayload(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	emps := seedCenterEmployees(db, 1, 1)
	router := setupScheduleRouter(db)

	// Payload schema is validated at the boundary, before any row exists.
	w := doJSON(router, "POST", "/scheduled-notifications", map[string]interface{}{
		"appointment_id": 13,
		"run_at":         time.Now().Add(time.Hour),
		"employee_id":    emps[0].ID,
		"payload":        `{"message":"no title"}`,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Mixed targeting is rejected.
	centerID := uint(3)
	w = doJSON(router, "POST", "/scheduled-notifications", map[string]interface{}{
		"appointment_id": 14,
		"run_at":         time.Now().Add(time.Hour),
		"employee_id":    emps[0].ID,
		"center_id":      centerID,
		"payload":        `{"title":"T","message":"M"}`,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	db.Model(&models.ScheduledNotification{}).Count(&count)
	assert.Zero(t, count)
}
