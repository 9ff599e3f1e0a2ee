package controllers

import (
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/services"
	"github.com/shiftline/notifier/utils"
	"gorm.io/gorm"
)

type NotificationController struct {
	DB  *gorm.DB
	Hub *gateway.Hub
}

func NewNotificationController(db *gorm.DB, hub *gateway.Hub) *NotificationController {
	return &NotificationController{DB: db, Hub: hub}
}

// GetAllNotifications
func (nc *NotificationController) GetAllNotifications(c *gin.Context) {
	var notifs []models.Notification
	if err := nc.DB.Order("created_at DESC").Find(&notifs).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications", notifs)
}

// CreateNotification -> single recipient atau broadcast.
// Exactly one of employee_id / is_broadcast must be active.
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	type reqBody struct {
		Title       string     `json:"title" binding:"required"`
		Message     string     `json:"message" binding:"required"`
		Type        string     `json:"type"`
		Priority    string     `json:"priority"`
		IsBroadcast bool       `json:"is_broadcast"`
		EmployeeID  *uint      `json:"employee_id"`
		CenterID    *uint      `json:"center_id"`
		StoreID     *uint      `json:"store_id"`
		Metadata    string     `json:"metadata"`
		ActionURL   string     `json:"action_url"`
		Icon        string     `json:"icon"`
		ExpiresAt   *time.Time `json:"expires_at"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	if body.IsBroadcast && body.EmployeeID != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("a notification targets either an employee or a broadcast scope, not both"))
		return
	}
	if !body.IsBroadcast && body.EmployeeID == nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("employee_id is required for non-broadcast notifications"))
		return
	}
	if body.Type == "" {
		body.Type = models.TypeSystem
	}
	if !services.ValidNotificationType(body.Type) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown notification type"))
		return
	}
	if body.Priority == "" {
		body.Priority = models.PriorityMedium
	}
	if !services.ValidNotificationPriority(body.Priority) {
		utils.RespondError(c, http.StatusBadRequest, errors.New("unknown notification priority"))
		return
	}

	notif := models.Notification{
		Title:       body.Title,
		Message:     body.Message,
		Type:        body.Type,
		Priority:    body.Priority,
		IsBroadcast: body.IsBroadcast,
		EmployeeID:  body.EmployeeID,
		Metadata:    body.Metadata,
		ActionURL:   body.ActionURL,
		Icon:        body.Icon,
		ExpiresAt:   body.ExpiresAt,
		Status:      models.StatusUnread,
	}
	if body.IsBroadcast {
		notif.CenterID = body.CenterID
		notif.StoreID = body.StoreID
	}

	err := nc.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}
		if !notif.IsBroadcast {
			return nil
		}
		recipients, err := services.ResolveBroadcastRecipients(tx, notif.CenterID, notif.StoreID)
		if err != nil {
			return err
		}
		for _, empID := range recipients {
			userNotif := models.UserNotification{
				NotificationID: notif.ID,
				EmployeeID:     empID,
				Status:         models.StatusUnread,
			}
			if err := tx.Create(&userNotif).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.InfoLogger.Printf("Notification %d created (broadcast=%v)", notif.ID, notif.IsBroadcast)
	nc.Hub.Publish(notif)

	utils.RespondJSON(c, http.StatusCreated, "Notification created", notif)
}

// GetNotificationByID
func (nc *NotificationController) GetNotificationByID(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification detail", notif)
}

// UpdateNotification -> status/metadata mutation
func (nc *NotificationController) UpdateNotification(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("notif_id"))

	type reqBody struct {
		Status   *string `json:"status"`
		Metadata *string `json:"metadata"`
	}
	var body reqBody
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	var notif models.Notification
	if err := nc.DB.First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	updates := map[string]interface{}{}
	if body.Status != nil {
		switch *body.Status {
		case models.StatusUnread, models.StatusRead, models.StatusArchived, models.StatusDeleted:
		default:
			utils.RespondError(c, http.StatusBadRequest, errors.New("unknown notification status"))
			return
		}
		updates["status"] = *body.Status
		if *body.Status == models.StatusRead && notif.ReadAt == nil {
			now := time.Now()
			updates["read_at"] = &now
		}
	}
	if body.Metadata != nil {
		updates["metadata"] = *body.Metadata
	}
	if len(updates) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("nothing to update"))
		return
	}

	if err := nc.DB.Model(&notif).Updates(updates).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification updated", notif)
}

// DeleteNotification
func (nc *NotificationController) DeleteNotification(c *gin.Context) {
	id, _ := strconv.Atoi(c.Param("notif_id"))

	res := nc.DB.Delete(&models.Notification{}, id)
	if res.Error != nil {
		utils.RespondError(c, http.StatusInternalServerError, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		utils.RespondError(c, http.StatusNotFound, errors.New("notification not found"))
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification deleted", gin.H{"notif_id": id})
}

// GetMyNotifications -> snapshot otoritatif untuk principal yang login.
// Direct rows carry their own status; broadcast rows carry the caller's
// UserNotification read-state. Ordered most recently touched first. Both
// sources are fetched newest-first and bounded to the requested window, so
// the page comes out of at most offset+limit rows per source; totals come
// from count queries over the full sets.
func (nc *NotificationController) GetMyNotifications(c *gin.Context) {
	employeeID := c.MustGet("employee_id").(uint)

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}
	window := offset + limit

	var directTotal, directUnread int64
	if err := nc.DB.Model(&models.Notification{}).
		Where("employee_id = ? AND is_broadcast = ? AND status <> ?", employeeID, false, models.StatusDeleted).
		Count(&directTotal).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := nc.DB.Model(&models.Notification{}).
		Where("employee_id = ? AND is_broadcast = ? AND status = ?", employeeID, false, models.StatusUnread).
		Count(&directUnread).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var fanoutTotal, fanoutUnread int64
	if err := nc.DB.Model(&models.UserNotification{}).
		Where("employee_id = ?", employeeID).
		Count(&fanoutTotal).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := nc.DB.Model(&models.UserNotification{}).
		Where("employee_id = ? AND status = ?", employeeID, models.StatusUnread).
		Count(&fanoutUnread).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var direct []models.Notification
	if err := nc.DB.
		Where("employee_id = ? AND is_broadcast = ? AND status <> ?", employeeID, false, models.StatusDeleted).
		Order("updated_at DESC").
		Limit(window).
		Find(&direct).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	var fanout []models.UserNotification
	if err := nc.DB.Preload("Notification").
		Where("employee_id = ?", employeeID).
		Order("updated_at DESC").
		Limit(window).
		Find(&fanout).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	items := make([]models.FeedItem, 0, len(direct)+len(fanout))
	for _, n := range direct {
		items = append(items, models.FeedItemFromNotification(n))
	}
	for _, un := range fanout {
		items = append(items, models.FeedItemFromUserNotification(un, un.Notification))
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].UpdatedAt.After(items[j].UpdatedAt)
	})

	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	page := items[offset:end]

	utils.RespondJSON(c, http.StatusOK, "My notifications", gin.H{
		"items":       page,
		"total":       directTotal + fanoutTotal,
		"unreadCount": directUnread + fanoutUnread,
	})
}

// MarkRead -> transisi read untuk principal yang login. Idempotent: the
// second call returns the same terminal state with a stable read_at.
func (nc *NotificationController) MarkRead(c *gin.Context) {
	employeeID := c.MustGet("employee_id").(uint)
	id, _ := strconv.Atoi(c.Param("notif_id"))

	var notif models.Notification
	if err := nc.DB.First(&notif, id).Error; err != nil {
		utils.RespondError(c, http.StatusNotFound, err)
		return
	}

	now := time.Now()

	if notif.IsBroadcast {
		var userNotif models.UserNotification
		if err := nc.DB.
			Where("notification_id = ? AND employee_id = ?", notif.ID, employeeID).
			First(&userNotif).Error; err != nil {
			utils.RespondError(c, http.StatusNotFound, errors.New("not a recipient of this notification"))
			return
		}

		// Conditional update keeps read_at stable under concurrent calls.
		if err := nc.DB.Model(&models.UserNotification{}).
			Where("id = ? AND status = ?", userNotif.ID, models.StatusUnread).
			Updates(map[string]interface{}{"status": models.StatusRead, "read_at": &now}).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}
		if err := nc.DB.First(&userNotif, userNotif.ID).Error; err != nil {
			utils.RespondError(c, http.StatusInternalServerError, err)
			return
		}

		utils.RespondJSON(c, http.StatusOK, "Notification read", models.FeedItemFromUserNotification(userNotif, notif))
		return
	}

	if notif.EmployeeID == nil || *notif.EmployeeID != employeeID {
		utils.RespondError(c, http.StatusForbidden, errors.New("notification belongs to another employee"))
		return
	}

	if err := nc.DB.Model(&models.Notification{}).
		Where("id = ? AND status = ?", notif.ID, models.StatusUnread).
		Updates(map[string]interface{}{"status": models.StatusRead, "read_at": &now}).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}
	if err := nc.DB.First(&notif, notif.ID).Error; err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Notification read", models.FeedItemFromNotification(notif))
}
