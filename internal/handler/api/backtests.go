package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/service/metrics"
	"PatternLab/internal/usecase"
	xhttp "PatternLab/pkg/http"
	xlogger "PatternLab/pkg/logger"
	xutil "PatternLab/pkg/util"
)

type BacktestService interface {
	Run(ctx context.Context, req models.BacktestRequest) (*usecase.BacktestReport, error)
	Get(ctx context.Context, runID string) (*models.BacktestResult, error)
	List(ctx context.Context, symbol string, limit int) ([]models.BacktestSummary, error)
}

// BacktestHandler serves /api/backtests. queue may be nil, which disables async submission.
type BacktestHandler struct {
	logger *xlogger.Logger
	svc    BacktestService
	queue  domrepo.JobQueue
}

func NewBacktestHandler(logger *xlogger.Logger, svc BacktestService, queue domrepo.JobQueue) *BacktestHandler {
	metrics.Register()
	return &BacktestHandler{logger: logger.With("api.backtests"), svc: svc, queue: queue}
}

func (h *BacktestHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/backtests")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}

// Create runs a backtest inline, or enqueues it when ?async=true.
func (h *BacktestHandler) Create(c echo.Context) error {
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if c.QueryParam("async") == "true" {
		if h.queue == nil {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestError("async backtests are disabled"))
		}
		start := time.Now()
		id, err := h.queue.SubmitBacktest(ctx, *req)
		metrics.Observe("backtests.submit", start, err)
		if err != nil {
			h.logger.Error("backtest submit failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
			return xhttp.AppErrorResponse(c, err)
		}
		return xhttp.AcceptedResponse(c, map[string]string{"job_id": id})
	}

	start := time.Now()
	report, err := h.svc.Run(ctx, *req)
	metrics.Observe("backtests.run", start, err)
	if err != nil {
		h.logger.Warn("backtest failed", xlogger.String("symbol", req.Symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, report)
}

func (h *BacktestHandler) List(c echo.Context) error {
	limit := xutil.ParseIntDefault(c.QueryParam("limit"), 50)
	if limit < 1 || limit > 500 {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("limit must be in [1,500]").WithParam("max", 500))
	}
	start := time.Now()
	rows, err := h.svc.List(c.Request().Context(), c.QueryParam("symbol"), limit)
	metrics.Observe("backtests.list", start, err)
	if err != nil {
		h.logger.Error("backtest list failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BacktestHandler) Get(c echo.Context) error {
	id := c.Param("id")
	start := time.Now()
	res, err := h.svc.Get(c.Request().Context(), id)
	metrics.Observe("backtests.get", start, err)
	if err != nil {
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=300")
	return xhttp.SuccessResponse(c, res)
}
