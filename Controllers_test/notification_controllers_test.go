package Controllers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shiftline/notifier/controllers"
	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
)

func setupTestDBForNotifications(t *testing.T) *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}
	err = db.AutoMigrate(
		&models.Employee{},
		&models.Notification{},
		&models.UserNotification{},
		&models.ScheduledNotification{},
	)
	if err != nil {
		panic(err)
	}
	return db
}

func seedCenterEmployees(db *gorm.DB, centerID uint, n int) []models.Employee {
	emps := make([]models.Employee, 0, n)
	for i := 0; i < n; i++ {
		emp := models.Employee{
			Name:     fmt.Sprintf("Employee %d", i+1),
			Email:    fmt.Sprintf("employee%d-c%d@example.com", i+1, centerID),
			Password: "secret",
			Role:     "staff",
			CenterID: &centerID,
		}
		db.Create(&emp)
		emps = append(emps, emp)
	}
	return emps
}

// setupNotificationRouter wires the controller behind a stub auth layer that
// binds the given principal, mirroring what AuthMiddleware does from claims.
func setupNotificationRouter(db *gorm.DB, principal *uint) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.Default()
	router.Use(func(c *gin.Context) {
		c.Set("employee_id", *principal)
		c.Set("role", "staff")
		c.Next()
	})

	notifCtrl := controllers.NewNotificationController(db, gateway.NewHub())
	router.GET("/notifications", notifCtrl.GetAllNotifications)
	router.POST("/notifications", notifCtrl.CreateNotification)
	router.GET("/notifications/me", notifCtrl.GetMyNotifications)
	router.GET("/notifications/:notif_id", notifCtrl.GetNotificationByID)
	router.PATCH("/notifications/:notif_id", notifCtrl.UpdateNotification)
	router.PATCH("/notifications/:notif_id/read", notifCtrl.MarkRead)
	router.DELETE("/notifications/:notif_id", notifCtrl.DeleteNotification)
	return router
}

func doJSON(router *gin.Engine, method, url string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		data, _ := json.Marshal(payload)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, url, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestNotificationCRUD(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	emps := seedCenterEmployees(db, 1, 1)
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	// Create
	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":       "Shift change",
		"message":     "Your shift moved to 2pm",
		"type":        "task",
		"priority":    "high",
		"employee_id": emps[0].ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	data := createResp["data"].(map[string]interface{})
	notifID := int(data["id"].(float64))

	// Get
	url := "/notifications/" + strconv.Itoa(notifID)
	w = doJSON(router, "GET", url, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Patch status
	w = doJSON(router, "PATCH", url, map[string]interface{}{"status": "archived"})
	assert.Equal(t, http.StatusOK, w.Code)

	var archived models.Notification
	assert.NoError(t, db.First(&archived, notifID).Error)
	assert.Equal(t, models.StatusArchived, archived.Status)

	// Delete
	w = doJSON(router, "DELETE", url, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// Deleting again: the row is gone.
	w = doJSON(router, "DELETE", url, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateNotificationTargetingIsExclusive(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	emps := seedCenterEmployees(db, 1, 1)
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	// Both a recipient and a broadcast flag
	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":        "Bad",
		"message":      "Both targets",
		"employee_id":  emps[0].ID,
		"is_broadcast": true,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Neither
	w = doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":   "Bad",
		"message": "No target",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown enum values are rejected with no side effects
	w = doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":       "Bad",
		"message":     "Bad type",
		"employee_id": emps[0].ID,
		"type":        "smoke-signal",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var count int64
	db.Model(&models.Notification{}).Count(&count)
	assert.Zero(t, count)
}

func TestBroadcastFanoutAndSnapshot(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	centerID := uint(3)
	emps := seedCenterEmployees(db, centerID, 3)
	seedCenterEmployees(db, 4, 1) // outside the scope
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":        "Center briefing",
		"message":      "Meeting room A at 9am",
		"type":         "announcement",
		"is_broadcast": true,
		"center_id":    centerID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	notifID := int(createResp["data"].(map[string]interface{})["id"].(float64))

	var rows []models.UserNotification
	assert.NoError(t, db.Where("notification_id = ?", notifID).Find(&rows).Error)
	assert.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, models.StatusUnread, row.Status)
	}

	// Snapshot for a recipient
	w = doJSON(router, "GET", "/notifications/me", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var meResp struct {
		Data struct {
			Items       []models.FeedItem `json:"items"`
			Total       int               `json:"total"`
			UnreadCount int               `json:"unreadCount"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &meResp))
	assert.Equal(t, 1, meResp.Data.Total)
	assert.Equal(t, 1, meResp.Data.UnreadCount)
	assert.Equal(t, models.StatusUnread, meResp.Data.Items[0].Status)
}

func TestMyNotificationsPagination(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	centerID := uint(5)
	emps := seedCenterEmployees(db, centerID, 1)
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	// Two direct notifications and one broadcast, oldest first. The pauses
	// keep updated_at strictly increasing.
	for _, title := range []string{"First", "Second"} {
		w := doJSON(router, "POST", "/notifications", map[string]interface{}{
			"title":       title,
			"message":     "Direct",
			"employee_id": emps[0].ID,
		})
		assert.Equal(t, http.StatusCreated, w.Code)
		time.Sleep(5 * time.Millisecond)
	}
	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":        "Third",
		"message":      "Broadcast",
		"is_broadcast": true,
		"center_id":    centerID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	type meResp struct {
		Data struct {
			Items       []models.FeedItem `json:"items"`
			Total       int               `json:"total"`
			UnreadCount int               `json:"unreadCount"`
		} `json:"data"`
	}

	// First page: newest two, with counts spanning the whole feed.
	w = doJSON(router, "GET", "/notifications/me?limit=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var first meResp
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Len(t, first.Data.Items, 2)
	assert.Equal(t, "Third", first.Data.Items[0].Title)
	assert.Equal(t, "Second", first.Data.Items[1].Title)
	assert.Equal(t, 3, first.Data.Total)
	assert.Equal(t, 3, first.Data.UnreadCount)

	// Second page: the remaining entry, same counts.
	w = doJSON(router, "GET", "/notifications/me?limit=2&offset=2", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var second meResp
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Len(t, second.Data.Items, 1)
	assert.Equal(t, "First", second.Data.Items[0].Title)
	assert.Equal(t, 3, second.Data.Total)

	// Past the end: empty page, counts intact.
	w = doJSON(router, "GET", "/notifications/me?limit=2&offset=10", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var past meResp
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &past))
	assert.Empty(t, past.Data.Items)
	assert.Equal(t, 3, past.Data.Total)
}

func TestMarkReadIsIdempotentPerRecipient(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	centerID := uint(3)
	emps := seedCenterEmployees(db, centerID, 2)
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":        "Read me",
		"message":      "Broadcast to the center",
		"is_broadcast": true,
		"center_id":    centerID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	notifID := int(createResp["data"].(map[string]interface{})["id"].(float64))
	readURL := fmt.Sprintf("/notifications/%d/read", notifID)

	w = doJSON(router, "PATCH", readURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var first struct {
		Data models.FeedItem `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, models.StatusRead, first.Data.Status)
	assert.NotNil(t, first.Data.ReadAt)

	// Second call: same terminal state, stable read_at, no error.
	w = doJSON(router, "PATCH", readURL, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var second struct {
		Data models.FeedItem `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, models.StatusRead, second.Data.Status)
	assert.Equal(t, first.Data.ReadAt.Unix(), second.Data.ReadAt.Unix())

	// The other recipient's read-state is untouched.
	var other models.UserNotification
	assert.NoError(t, db.Where("notification_id = ? AND employee_id = ?", notifID, emps[1].ID).First(&other).Error)
	assert.Equal(t, models.StatusUnread, other.Status)

	// The principal's unread count drops to zero.
	w = doJSON(router, "GET", "/notifications/me", nil)
	var meResp struct {
		Data struct {
			UnreadCount int `json:"unreadCount"`
		} `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &meResp))
	assert.Equal(t, 0, meResp.Data.UnreadCount)
}

func TestMarkReadRejectsNonRecipient(t *testing.T) {
	utils.InitLogger()
	db := setupTestDBForNotifications(t)
	emps := seedCenterEmployees(db, 1, 2)
	principal := emps[0].ID
	router := setupNotificationRouter(db, &principal)

	// Direct notification for employee 2.
	w := doJSON(router, "POST", "/notifications", map[string]interface{}{
		"title":       "Private",
		"message":     "For someone else",
		"employee_id": emps[1].ID,
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	var createResp map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &createResp))
	notifID := int(createResp["data"].(map[string]interface{})["id"].(float64))

	// Principal is employee 1: the read transition is refused.
	w = doJSON(router, "PATCH", fmt.Sprintf("/notifications/%d/read", notifID), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
