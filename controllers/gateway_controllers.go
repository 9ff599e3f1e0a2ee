package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
	"gorm.io/gorm"
)

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin: func(r *http.Request) bool {
		return true // Sesuaikan dengan kebutuhan keamanan
	},
}

type GatewayController struct {
	DB  *gorm.DB
	Hub *gateway.Hub
}

func NewGatewayController(db *gorm.DB, hub *gateway.Hub) *GatewayController {
	return &GatewayController{DB: db, Hub: hub}
}

// Connect -> endpoint WebSocket. The websocket auth middleware has already
// verified the token fail-closed; the employee id comes from the verified
// claims, never from the client.
func (gc *GatewayController) Connect(c *gin.Context) {
	employeeIDValue, exists := c.Get("employee_id")
	if !exists {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	employeeID := employeeIDValue.(uint)

	// Center/store scope is captured at bind time for scoped broadcasts.
	var emp models.Employee
	if err := gc.DB.First(&emp, employeeID).Error; err != nil {
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Printf("Websocket upgrade failed for employee %d: %v", employeeID, err)
		return
	}

	connID := gc.Hub.Register(ws, emp)
	utils.InfoLogger.Printf("Employee %d connected (%d active connections)", emp.ID, gc.Hub.ConnectionCount(emp.ID))

	// Read pump: clients do not send application messages, but reading is
	// required to observe close frames and disconnects.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	gc.Hub.Unregister(emp.ID, connID)
	utils.InfoLogger.Printf("Employee %d disconnected", emp.ID)
}
