package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/HerbHall/sysinfo/internal/server"
	"github.com/HerbHall/sysinfo/internal/stream"
	"github.com/HerbHall/sysinfo/internal/telemetry"
	"github.com/HerbHall/sysinfo/pkg/models"
)

const retrieveFailed = "An error occurred while retrieving system information"

// handleGetSystemInfo returns the full snapshot.
//
//	@Summary		Full system information
//	@Description	Returns one complete host telemetry snapshot.
//	@Tags			SystemInfo
//	@Produce		json
//	@Success		200	{object}	models.SystemInfoResponse
//	@Failure		500	{object}	server.Problem
//	@Router			/api/SystemInfo [get]
func (m *Module) handleGetSystemInfo(w http.ResponseWriter, r *http.Request) {
	snap, ok := m.snapshot(w, r)
	if !ok {
		return
	}
	server.WriteJSON(w, http.StatusOK, snap.Response())
}

// handleGetMetric returns one projection of the snapshot.
//
//	@Summary		Single metric
//	@Description	Returns cpu, memory, os or uptime (case-insensitive).
//	@Tags			SystemInfo
//	@Produce		json
//	@Param			metric	path		string	true	"Metric name"
//	@Success		200		{object}	object
//	@Failure		404		{object}	server.Problem
//	@Failure		500		{object}	server.Problem
//	@Router			/api/SystemInfo/{metric} [get]
func (m *Module) handleGetMetric(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("metric")
	metric, ok := models.ParseMetric(name)
	if !ok {
		server.NotFound(w, fmt.Sprintf("Metric '%s' not found", name), r.URL.Path)
		return
	}

	snap, ok := m.snapshot(w, r)
	if !ok {
		return
	}
	server.WriteJSON(w, http.StatusOK, snap.Response().Project(metric))
}

// snapshot runs the unary handler and writes the error response on failure.
func (m *Module) snapshot(w http.ResponseWriter, r *http.Request) (telemetry.Snapshot, bool) {
	snap, err := m.handler.Handle(r.Context())
	if err == nil {
		return snap, true
	}
	if r.Context().Err() != nil {
		// Client went away; nobody is listening for a response.
		return telemetry.Snapshot{}, false
	}
	m.logger.Error("snapshot failed", zap.Error(err))
	server.InternalError(w, retrieveFailed, r.URL.Path)
	return telemetry.Snapshot{}, false
}

// handleStream upgrades to a WebSocket and pushes snapshots until the client
// disconnects or the module stops.
//
//	@Summary		Stream snapshots
//	@Description	Pushes one JSON snapshot per interval over a WebSocket.
//	@Tags			SystemInfo
//	@Param			intervalMs	query	int	false	"Update interval in milliseconds"
//	@Success		101
//	@Failure		400	{object}	server.Problem
//	@Router			/ws/SystemInfo [get]
func (m *Module) handleStream(w http.ResponseWriter, r *http.Request) {
	var intervalMs int64
	if raw := r.URL.Query().Get("intervalMs"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			server.BadRequest(w, "intervalMs must be an integer", r.URL.Path)
			return
		}
		intervalMs = v
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: m.wsAnyOrigin,
		OriginPatterns:     m.wsOrigins,
	})
	if err != nil {
		m.logger.Debug("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	// CloseRead cancels ctx when the client closes or drops the connection.
	ctx := conn.CloseRead(r.Context())
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	sink := stream.SinkFunc(func(ctx context.Context, snap telemetry.Snapshot) error {
		wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
		defer cancel()
		return wsjson.Write(wctx, conn, snap.Response())
	})

	sess := stream.New(m.handler.Source(), sink, intervalMs,
		stream.WithTransport("ws"),
		stream.WithLogger(m.logger),
		stream.WithObserver(m.observer),
		stream.WithDefaultInterval(m.defaultInterval),
	)

	m.activeStreams.Add(1)
	defer m.activeStreams.Add(-1)

	if err := sess.Run(ctx); err != nil {
		m.logger.Warn("websocket stream failed", zap.String("session_id", sess.ID()), zap.Error(err))
		_ = conn.Close(websocket.StatusInternalError, "error occurred during streaming")
		return
	}

	if m.ctx.Err() != nil {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
