package router

import (
	"github.com/gin-gonic/gin"
	"github.com/shiftline/notifier/controllers"
	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/middlewares"
	"gorm.io/gorm"
)

func SetupRouter(db *gorm.DB, hub *gateway.Hub) *gin.Engine {
	r := gin.Default()

	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddlewares())
	r.Use(middlewares.LoggerMiddleware())
	// Global per-IP limiter. Must be registered before the routes below or
	// their handler chains are snapshotted without it.
	r.Use(middlewares.NewRateLimiter(50, 1).RateLimit())

	employeeCtrl := controllers.NewEmployeeController(db)
	notificationCtrl := controllers.NewNotificationController(db, hub)
	scheduleCtrl := controllers.NewScheduleController(db)
	gatewayCtrl := controllers.NewGatewayController(db, hub)

	// ----------------------------------------------------------------
	//                      PUBLIC ROUTES
	// ----------------------------------------------------------------
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Rate limiter untuk login/register
	public := r.Group("/")
	public.Use(middlewares.NewStrictRateLimiter())
	{
		public.POST("/register", employeeCtrl.Register)
		public.POST("/login", employeeCtrl.Login)
	}

	// ----------------------------------------------------------------
	//                      AUTHENTICATED ROUTES
	// ----------------------------------------------------------------
	auth := r.Group("/")
	auth.Use(middlewares.AuthMiddleware())

	auth.GET("/profile", employeeCtrl.GetProfile)

	// NOTIFICATIONS
	auth.GET("/notifications/me", notificationCtrl.GetMyNotifications)
	auth.PATCH("/notifications/:notif_id/read", notificationCtrl.MarkRead)
	auth.GET("/notifications", notificationCtrl.GetAllNotifications)
	auth.GET("/notifications/:notif_id", notificationCtrl.GetNotificationByID)

	// Mutating the store directly is a staff/admin operation.
	staff := auth.Group("/")
	staff.Use(middlewares.RequireRole("manager", "staff"))
	{
		staff.POST("/notifications", notificationCtrl.CreateNotification)
		staff.PATCH("/notifications/:notif_id", notificationCtrl.UpdateNotification)
		staff.DELETE("/notifications/:notif_id", notificationCtrl.DeleteNotification)
	}

	// SCHEDULED NOTIFICATIONS (appointments collaborator)
	auth.POST("/scheduled-notifications", scheduleCtrl.CreateScheduledNotification)
	auth.GET("/scheduled-notifications", scheduleCtrl.GetScheduledNotifications)
	auth.POST("/scheduled-notifications/:job_id/cancel", scheduleCtrl.CancelScheduledNotification)

	// WebSocket endpoint dengan middleware khusus
	wsGroup := r.Group("/ws")
	wsGroup.Use(middlewares.WebSocketAuthMiddleware())
	{
		wsGroup.GET("/notifications", gatewayCtrl.Connect)
	}

	return r
}
