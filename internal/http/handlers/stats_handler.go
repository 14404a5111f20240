// Statistics HTTP handlers.
//
// This file exposes the dashboard's read endpoints:
//   - GET    /stats               (cached snapshot, {data, is_loading, error})
//   - GET    /dashboard           (formatted widget view models)
//   - GET    /stats/stream        (server-sent events, one per cache transition)
//   - POST   /stats/refetch       (manual retry)
//   - GET    /stats/cache         (cache diagnostics)
//   - GET    /upstream/health     (statistics backend liveness)
//
// Handlers are transport-thin: they parse the period, call the query layer or
// the dashboard service, and translate states into HTTP responses. A failed
// fetch is not an HTTP error; it is reported inside the 200 body next to any
// data still cached for the period.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bot-dashboard/internal/domain"
	"github.com/tbourn/go-bot-dashboard/internal/http/middleware"
	"github.com/tbourn/go-bot-dashboard/internal/query"
	"github.com/tbourn/go-bot-dashboard/internal/services"
	"github.com/tbourn/go-bot-dashboard/internal/sysutil"
	"github.com/tbourn/go-bot-dashboard/internal/utils"
)

//
// Service contracts (context-aware)
//

// StatisticsCache is the period-scoped query layer consumed by handlers.
// *query.Statistics satisfies it.
type StatisticsCache interface {
	// Get returns the state for p, waiting only for a first fetch.
	Get(ctx context.Context, p domain.Period) (query.StatisticsState, error)
	// Peek returns the cached state for p without fetching.
	Peek(p domain.Period) query.StatisticsState
	// Prefetch starts a fetch for p if it has no fresh data.
	Prefetch(p domain.Period) error
	// Refetch forces a fetch for p.
	Refetch(p domain.Period) error
	// Use attaches an observer to p.
	Use(p domain.Period, fn func(query.StatisticsState)) (*query.Subscription[domain.StatisticsSnapshot], query.StatisticsState, error)
	// Entries lists cache entries for diagnostics.
	Entries() []query.EntryInfo
	// BreakerState reports the upstream circuit breaker state.
	BreakerState() string
	// Breaker returns breaker counters, or nil when disabled.
	Breaker() *query.BreakerStats
}

// DashboardViewer builds formatted views. *services.DashboardService
// satisfies it.
type DashboardViewer interface {
	View(ctx context.Context, p domain.Period) (*services.DashboardView, error)
	Build(p domain.Period, st query.StatisticsState) *services.DashboardView
}

// UpstreamChecker checks the statistics backend. *statsclient.Client
// satisfies it.
type UpstreamChecker interface {
	CheckLiveness(ctx context.Context) (*domain.HealthStatus, error)
}

//
// Handler wiring
//

// Stream tuning.
const (
	defaultHeartbeat = 15 * time.Second
	minHeartbeatSec  = 5
	maxHeartbeatSec  = 120

	// streamBuffer bounds undelivered transitions per stream; when a slow
	// client falls behind, the oldest pending transition is dropped.
	streamBuffer = 8
)

// Handlers groups the statistics endpoints.
type Handlers struct {
	stats     StatisticsCache
	views     DashboardViewer
	upstream  UpstreamChecker
	heartbeat time.Duration
}

// New constructs Handlers bound to the given collaborators. views and
// upstream may be nil; their endpoints then answer 503.
func New(stats StatisticsCache, views DashboardViewer, upstream UpstreamChecker) *Handlers {
	return &Handlers{stats: stats, views: views, upstream: upstream, heartbeat: defaultHeartbeat}
}

//
// DTOs
//

// StatisticsResponse is the observer contract for one period.
type StatisticsResponse struct {
	Period     domain.Period              `json:"period" example:"week"`
	Data       *domain.StatisticsSnapshot `json:"data"`
	IsLoading  bool                       `json:"is_loading"`
	IsFetching bool                       `json:"is_fetching"`
	Status     string                     `json:"status" example:"fresh"`
	UpdatedAt  *time.Time                 `json:"updated_at,omitempty"`
	Error      *ErrorBody                 `json:"error"`
}

// DashboardResponse is a formatted dashboard view plus its fetch error.
type DashboardResponse struct {
	*services.DashboardView
	Error *ErrorBody `json:"error"`
}

// CacheResponse lists cache entries and the breaker state.
type CacheResponse struct {
	Breaker      string              `json:"breaker" example:"closed"`
	BreakerStats *query.BreakerStats `json:"breaker_stats,omitempty"`
	Entries      []query.EntryInfo   `json:"entries"`
}

// UpstreamHealthResponse reports backend liveness.
type UpstreamHealthResponse struct {
	Status  string `json:"status" example:"ok"`
	Breaker string `json:"breaker" example:"closed"`
}

//
// Helpers
//

// period parses the "period" query parameter. It writes a 400 and returns
// false when the value is not a supported period.
func period(c *gin.Context) (domain.Period, bool) {
	p, err := domain.ParsePeriod(c.Query("period"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "period must be one of day, week, month")
		return "", false
	}
	return p, true
}

func stateResponse(p domain.Period, st query.StatisticsState) StatisticsResponse {
	resp := StatisticsResponse{
		Period:     p,
		Data:       st.Data,
		IsLoading:  st.IsLoading,
		IsFetching: st.IsFetching,
		Status:     st.Status.String(),
		Error:      errorBody(st.Err),
	}
	if !st.UpdatedAt.IsZero() {
		u := st.UpdatedAt
		resp.UpdatedAt = &u
	}
	return resp
}

// stateETag identifies the cached snapshot a response was built from. An
// entry that never succeeded uses 0 for its timestamp.
func stateETag(p domain.Period, st query.StatisticsState) string {
	var ns int64
	if !st.UpdatedAt.IsZero() {
		ns = st.UpdatedAt.UnixNano()
	}
	return fmt.Sprintf(`W/"stats:%s:%d:%s"`, p, ns, st.Status)
}

// failQuery writes the envelope for an error returned by the query layer
// itself (not a fetch failure held by an entry).
func failQuery(c *gin.Context, err error) {
	switch code := errorCode(err); code {
	case ErrCodeUnavailable:
		fail(c, http.StatusServiceUnavailable, code, "statistics cache is closed")
	case ErrCodeGatewayTimeout:
		fail(c, http.StatusGatewayTimeout, code, "statistics not available yet")
	default:
		if errors.Is(err, domain.ErrInvalidPeriod) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, code, err.Error())
	}
}

//
// Handlers
//

// GetStatistics godoc
// @ID          getStatistics
// @Summary     Statistics for a period
// @Description Returns the cached snapshot for the period. The first request for a period waits for the fetch unless wait=false. Fetch failures are reported in the error field with HTTP 200; stale data is kept.
// @Tags        Statistics
// @Produce     json
//
// @Param       period         query   string  false "Reporting period"            Enums(day, week, month) default(week)
// @Param       wait           query   bool    false "Wait for the first fetch"    default(true)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"stats:week:1760700000000000000:fresh\")
//
// @Success     200  {object} handlers.StatisticsResponse
// @Header      200  {string} ETag  "Weak ETag for the cached snapshot"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Invalid period"
// @Failure     503  {object} handlers.ErrorResponse "Cache closed"
// @Failure     504  {object} handlers.ErrorResponse "Request ended before the first fetch"
// @Router      /stats [get]
func (h *Handlers) GetStatistics(c *gin.Context) {
	p, good := period(c)
	if !good {
		return
	}

	var st query.StatisticsState
	wait := c.Query("wait") == "" || sysutil.IsTruthy(c.Query("wait"))
	if wait {
		var err error
		if st, err = h.stats.Get(c.Request.Context(), p); err != nil {
			failQuery(c, err)
			return
		}
	} else {
		if err := h.stats.Prefetch(p); err != nil {
			failQuery(c, err)
			return
		}
		st = h.stats.Peek(p)
	}

	if !st.IsLoading {
		etag := stateETag(p, st)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}
	ok(c, http.StatusOK, stateResponse(p, st))
}

// GetDashboard godoc
// @ID          getDashboard
// @Summary     Formatted dashboard view
// @Description Returns summary cards, chart series, recent dialogs and top users with localized labels, numbers and relative times.
// @Tags        Statistics
// @Produce     json
//
// @Param       period  query  string  false "Reporting period"  Enums(day, week, month) default(week)
//
// @Success     200  {object} handlers.DashboardResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid period"
// @Failure     503  {object} handlers.ErrorResponse "Dashboard not configured"
// @Router      /dashboard [get]
func (h *Handlers) GetDashboard(c *gin.Context) {
	p, good := period(c)
	if !good {
		return
	}
	if h.views == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "dashboard view not configured")
		return
	}
	v, err := h.views.View(c.Request.Context(), p)
	if err != nil {
		failQuery(c, err)
		return
	}
	ok(c, http.StatusOK, DashboardResponse{DashboardView: v, Error: errorBody(v.Err)})
}

// StreamStatistics godoc
// @ID          streamStatistics
// @Summary     Live statistics stream
// @Description Server-sent events. The connection observes the period: a "state" event carries the current state on connect and after every cache transition; "ping" events keep idle connections open. With view=true events carry the formatted dashboard view instead.
// @Tags        Statistics
// @Produce     text/event-stream
//
// @Param       period     query  string  false "Reporting period"              Enums(day, week, month) default(week)
// @Param       view       query  bool    false "Send formatted dashboard views" default(false)
// @Param       heartbeat  query  int     false "Ping interval in seconds"      minimum(5) maximum(120) default(15)
//
// @Success     200  {string} string "event stream"
// @Failure     400  {object} handlers.ErrorResponse "Invalid period"
// @Failure     503  {object} handlers.ErrorResponse "Cache closed"
// @Router      /stats/stream [get]
func (h *Handlers) StreamStatistics(c *gin.Context) {
	p, good := period(c)
	if !good {
		return
	}
	asView := sysutil.IsTruthy(c.Query("view")) && h.views != nil
	heartbeat := h.heartbeat
	if s := c.Query("heartbeat"); s != "" {
		heartbeat = time.Duration(utils.Clamp(utils.AtoiDefault(s, minHeartbeatSec), minHeartbeatSec, maxHeartbeatSec)) * time.Second
	}

	updates := make(chan query.StatisticsState, streamBuffer)
	sub, st, err := h.stats.Use(p, func(st query.StatisticsState) {
		// Runs on the cache's notification path: never block.
		for {
			select {
			case updates <- st:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	if err != nil {
		failQuery(c, err)
		return
	}
	defer sub.Close()

	streamsActive.Inc()
	defer streamsActive.Dec()
	lg := middleware.LoggerFrom(c)
	lg.Debug().Str("period", p.String()).Msg("stream opened")

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	send := func(st query.StatisticsState) {
		if asView {
			v := h.views.Build(p, st)
			c.SSEvent("state", DashboardResponse{DashboardView: v, Error: errorBody(v.Err)})
		} else {
			c.SSEvent("state", stateResponse(p, st))
		}
		streamEvents.WithLabelValues("state").Inc()
	}
	send(st)
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	ctx := c.Request.Context()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case st := <-updates:
			send(st)
		case t := <-ticker.C:
			c.SSEvent("ping", t.UTC().Format(time.RFC3339))
			streamEvents.WithLabelValues("ping").Inc()
		}
		return true
	})
	lg.Debug().Str("period", p.String()).Msg("stream closed")
}

// RefetchStatistics godoc
// @ID          refetchStatistics
// @Summary     Retry a period
// @Description Forces a new fetch for the period (the dashboard's retry action). Returns the state right after the fetch started; cached data keeps being served meanwhile.
// @Tags        Statistics
// @Produce     json
//
// @Param       period  query  string  false "Reporting period"  Enums(day, week, month) default(week)
//
// @Success     202  {object} handlers.StatisticsResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid period"
// @Failure     503  {object} handlers.ErrorResponse "Cache closed"
// @Router      /stats/refetch [post]
func (h *Handlers) RefetchStatistics(c *gin.Context) {
	p, good := period(c)
	if !good {
		return
	}
	if err := h.stats.Refetch(p); err != nil {
		failQuery(c, err)
		return
	}
	ok(c, http.StatusAccepted, stateResponse(p, h.stats.Peek(p)))
}

// CacheEntries godoc
// @ID          cacheEntries
// @Summary     Cache diagnostics
// @Description Lists statistics cache entries with status, observer count and timestamps, plus the upstream circuit breaker state and counters.
// @Tags        Statistics
// @Produce     json
// @Success     200  {object} handlers.CacheResponse
// @Router      /stats/cache [get]
func (h *Handlers) CacheEntries(c *gin.Context) {
	ok(c, http.StatusOK, CacheResponse{
		Breaker:      h.stats.BreakerState(),
		BreakerStats: h.stats.Breaker(),
		Entries:      h.stats.Entries(),
	})
}

// UpstreamHealth godoc
// @ID          upstreamHealth
// @Summary     Statistics backend liveness
// @Description Calls the backend health endpoint and reports its status.
// @Tags        Health
// @Produce     json
// @Success     200  {object} handlers.UpstreamHealthResponse
// @Failure     502  {object} handlers.ErrorResponse "Backend unreachable or invalid response"
// @Failure     503  {object} handlers.ErrorResponse "Backend client not configured"
// @Router      /upstream/health [get]
func (h *Handlers) UpstreamHealth(c *gin.Context) {
	if h.upstream == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "statistics backend not configured")
		return
	}
	hs, err := h.upstream.CheckLiveness(c.Request.Context())
	if err != nil {
		fail(c, http.StatusBadGateway, errorCode(err), err.Error())
		return
	}
	ok(c, http.StatusOK, UpstreamHealthResponse{Status: hs.Status, Breaker: h.stats.BreakerState()})
}
