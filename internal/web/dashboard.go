package web

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/sweeney/sia-local-control/internal/dashboard"
)

// DashboardJSON is the JSON representation of the dashboard board.
type DashboardJSON struct {
	Dashboard DashboardInner `json:"dashboard"`
}

// DashboardInner contains the board details.
type DashboardInner struct {
	Pump          dashboard.Pump  `json:"pump"`
	Pump2         dashboard.Pump  `json:"pump2"`
	Solar         dashboard.Solar `json:"solar"`
	Tank          dashboard.Tank  `json:"tank"`
	Skid          dashboard.Skid  `json:"skid"`
	Updates       uint64          `json:"updates"`
	UpdatedAt     string          `json:"updated_at,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	StartTime     string          `json:"start_time"`
	Timestamp     string          `json:"timestamp"`
}

func dashboardJSON(s dashboard.State) DashboardJSON {
	dj := DashboardJSON{
		Dashboard: DashboardInner{
			Pump:          s.Pump,
			Pump2:         s.Pump2,
			Solar:         s.Solar,
			Tank:          s.Tank,
			Skid:          s.Skid,
			Updates:       s.Updates,
			UptimeSeconds: int64(s.Uptime().Truncate(time.Second).Seconds()),
			StartTime:     s.StartTime.UTC().Format(time.RFC3339),
			Timestamp:     s.Now.UTC().Format(time.RFC3339),
		},
	}
	if !s.UpdatedAt.IsZero() {
		dj.Dashboard.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}
	return dj
}

// NewDashboard creates the dashboard server. Board updates are forwarded to
// hub; the caller runs the hub.
func NewDashboard(addr string, board *dashboard.Board, hub *Hub) *Server {
	s := newServer(addr)
	d := &dashboardHandlers{
		board: board,
		hub:   hub,
		upgrader: websocket.Upgrader{
			// the dashboard is served on the local network only
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	board.Subscribe(func(u dashboard.Update) {
		hub.Broadcast(Message{Type: "update", Payload: u})
	})

	s.echo.GET("/", d.handleIndex)
	s.echo.GET("/index.html", d.handleIndex)
	s.echo.GET("/index.json", d.handleJSON)
	s.echo.GET("/ws", d.handleWS)
	s.echo.GET("/health", handleHealth)
	return s
}

type dashboardHandlers struct {
	board    *dashboard.Board
	hub      *Hub
	upgrader websocket.Upgrader
}

func (d *dashboardHandlers) handleIndex(c echo.Context) error {
	var buf bytes.Buffer
	if err := renderDashboard(&buf, d.board.State()); err != nil {
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

func (d *dashboardHandlers) handleJSON(c echo.Context) error {
	data, err := json.MarshalIndent(dashboardJSON(d.board.State()), "", "  ")
	if err != nil {
		return err
	}
	return c.JSONBlob(http.StatusOK, data)
}

// handleWS upgrades the connection, sends the current board as a snapshot
// and then streams group updates.
func (d *dashboardHandlers) handleWS(c echo.Context) error {
	conn, err := d.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return nil
	}

	snapshot := Message{Type: "snapshot", Payload: dashboardJSON(d.board.State()).Dashboard}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(snapshot); err != nil {
		conn.Close()
		return nil
	}

	cl := &client{hub: d.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	if !d.hub.add(cl) {
		conn.Close()
		return nil
	}
	go cl.writePump()
	go cl.readPump()
	return nil
}
