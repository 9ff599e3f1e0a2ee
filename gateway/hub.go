package gateway

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
)

// Event types
const (
	EventNotification = "notification"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// connection wraps a websocket with its own write lock so a slow client
// only serializes writes on its own socket, never the whole fan-out.
type connection struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *connection) send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

type client struct {
	conn       *connection
	employeeID uint
	centerID   *uint
	storeID    *uint
}

// Hub menampung semua koneksi client, dikelompokkan per employee.
// A principal may hold several simultaneous connections (multiple devices),
// all bound to the same employee channel.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint]map[string]*client // employeeID -> connID -> client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[uint]map[string]*client),
	}
}

// Register binds a verified connection to its employee channel and returns
// the connection id used to unregister it later.
func (h *Hub) Register(ws *websocket.Conn, emp models.Employee) string {
	connID := uuid.NewString()

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[emp.ID] == nil {
		h.clients[emp.ID] = make(map[string]*client)
	}
	h.clients[emp.ID][connID] = &client{
		conn:       &connection{ws: ws},
		employeeID: emp.ID,
		centerID:   emp.CenterID,
		storeID:    emp.StoreID,
	}
	return connID
}

// Unregister melepaskan connection dan menutup socket-nya.
func (h *Hub) Unregister(employeeID uint, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(employeeID, connID)
}

func (h *Hub) dropLocked(employeeID uint, connID string) {
	conns, ok := h.clients[employeeID]
	if !ok {
		return
	}
	if cl, ok := conns[connID]; ok {
		cl.conn.ws.Close()
		delete(conns, connID)
	}
	if len(conns) == 0 {
		delete(h.clients, employeeID)
	}
}

// ConnectionCount returns the number of live connections for an employee.
func (h *Hub) ConnectionCount(employeeID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[employeeID])
}

type target struct {
	employeeID uint
	connID     string
	conn       *connection
}

// Publish pushes a materialized notification to every resolved recipient:
// the single recipient's channel, or every bound channel matching the
// broadcast scope. Delivery is best-effort; a failed write only closes
// that one connection.
func (h *Hub) Publish(notif models.Notification) {
	msg := Message{
		Event: EventNotification,
		Data:  notif,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Printf("Error marshaling notification %d: %v", notif.ID, err)
		return
	}

	// Snapshot the targets under the read lock, write outside it.
	h.mu.RLock()
	var targets []target
	for employeeID, conns := range h.clients {
		for connID, cl := range conns {
			if h.matches(notif, cl) {
				targets = append(targets, target{employeeID: employeeID, connID: connID, conn: cl.conn})
			}
		}
	}
	h.mu.RUnlock()

	for _, t := range targets {
		if err := t.conn.send(data); err != nil {
			utils.ErrorLogger.Printf("Error pushing notification %d to employee %d: %v", notif.ID, t.employeeID, err)
			h.Unregister(t.employeeID, t.connID)
		}
	}
}

// matches resolves whether a bound client is a recipient of the notification.
func (h *Hub) matches(notif models.Notification, cl *client) bool {
	if !notif.IsBroadcast {
		return notif.EmployeeID != nil && *notif.EmployeeID == cl.employeeID
	}
	if notif.CenterID != nil {
		return cl.centerID != nil && *cl.centerID == *notif.CenterID
	}
	if notif.StoreID != nil {
		return cl.storeID != nil && *cl.storeID == *notif.StoreID
	}
	// Unscoped broadcast goes to every bound channel.
	return true
}
