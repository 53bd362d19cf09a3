package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"BullionWatch/internal/collector"
	"BullionWatch/internal/hub"
	"BullionWatch/internal/model"
	"BullionWatch/internal/report"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 1000
)

// HistoryFetcher serves dated observations for charting.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, id string, limit int) ([]model.Observation, error)
}

// SnapshotSource returns the latest published snapshot, nil before the first.
type SnapshotSource interface {
	Load() *model.Snapshot
}

// Settings is the public subset of the configuration.
type Settings struct {
	UpdateInterval time.Duration
	Symbol         string
	Timeframes     []string
	HistoryLimit   int
}

// Handler serves the REST surface and upgrades dashboard websockets.
type Handler struct {
	snapshots SnapshotSource
	history   HistoryFetcher
	hub       *hub.Hub
	settings  Settings
	logger    *zap.Logger
}

// NewHandler creates a Handler. history may be nil when no macro provider is
// configured; the series routes then answer 503.
func NewHandler(snapshots SnapshotSource, history HistoryFetcher, h *hub.Hub, settings Settings, logger *zap.Logger) *Handler {
	if settings.HistoryLimit <= 0 {
		settings.HistoryLimit = defaultHistoryLimit
	}
	return &Handler{snapshots: snapshots, history: history, hub: h, settings: settings, logger: logger}
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes binds handler methods to the engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", h.Upgrade)
	r.GET("/series/:id", h.Series)

	api := r.Group("/api")
	{
		api.GET("/snapshot", h.Snapshot)
		api.GET("/snapshot/text", h.SnapshotText)
		api.GET("/config", h.Config)
		api.GET("/fred/history/:id", h.Series)
	}
}

func errorJSON(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// Health reports liveness and the connected client count.
func (h *Handler) Health(c *gin.Context) {
	body := gin.H{"status": "ok", "clients": h.hub.Count()}
	if s := h.snapshots.Load(); s != nil {
		body["last_update"] = s.Timestamp
	}
	c.JSON(http.StatusOK, body)
}

// Snapshot returns the latest snapshot.
func (h *Handler) Snapshot(c *gin.Context) {
	s := h.snapshots.Load()
	if s == nil {
		errorJSON(c, http.StatusServiceUnavailable, "No data available yet")
		return
	}
	c.JSON(http.StatusOK, s)
}

// SnapshotText returns the latest snapshot as a plain-text report.
func (h *Handler) SnapshotText(c *gin.Context) {
	s := h.snapshots.Load()
	if s == nil {
		c.String(http.StatusServiceUnavailable, "No data available yet\n")
		return
	}
	c.String(http.StatusOK, report.FormatSnapshot(s))
}

// Config exposes the refresh interval and instrument settings.
func (h *Handler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"update_interval": int(h.settings.UpdateInterval / time.Second),
		"symbol":          h.settings.Symbol,
		"timeframes":      h.settings.Timeframes,
	})
}

// Series returns the history of one macro series, oldest first.
func (h *Handler) Series(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		errorJSON(c, http.StatusBadRequest, "id is required")
		return
	}
	limit := h.settings.HistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			errorJSON(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	if h.history == nil {
		errorJSON(c, http.StatusServiceUnavailable, "series history is not configured")
		return
	}

	obs, err := h.history.FetchHistory(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Warn("series history failed", zap.String("id", id), zap.Error(err))
		errorJSON(c, seriesStatus(err), err.Error())
		return
	}
	if obs == nil {
		obs = []model.Observation{}
	}
	c.JSON(http.StatusOK, obs)
}

func seriesStatus(err error) int {
	switch {
	case errors.Is(err, collector.ErrNotAtTier):
		return http.StatusNotFound
	case errors.Is(err, collector.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

// Upgrade hands the request over to a websocket connection on the hub.
func (h *Handler) Upgrade(c *gin.Context) {
	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	hub.NewConn(conn, h.hub, h.logger).Start()
}
