package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"PatternLab/internal/domain/models"
	"PatternLab/internal/service/metrics"
	"PatternLab/internal/usecase"
	xhttp "PatternLab/pkg/http"
	xlogger "PatternLab/pkg/logger"
)

type PatternService interface {
	Scan(ctx context.Context, req models.PatternScanRequest) (*usecase.PatternScan, error)
	Evaluate(ctx context.Context, req models.PatternEvaluateRequest) (*models.PatternEvaluation, error)
}

type AnalysisService interface {
	Indicators(ctx context.Context, req models.IndicatorRequest) (*usecase.IndicatorReport, error)
	Regimes(ctx context.Context, req models.RegimeRequest) (*usecase.RegimeReport, error)
}

// AnalysisHandler serves the read-only analysis endpoints.
type AnalysisHandler struct {
	logger   *xlogger.Logger
	patterns PatternService
	analysis AnalysisService
}

func NewAnalysisHandler(logger *xlogger.Logger, patterns PatternService, analysis AnalysisService) *AnalysisHandler {
	metrics.Register()
	return &AnalysisHandler{logger: logger.With("api.analysis"), patterns: patterns, analysis: analysis}
}

func (h *AnalysisHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/patterns", h.Patterns)
	g.GET("/patterns/evaluate", h.Evaluate)
	g.GET("/indicators", h.Indicators)
	g.GET("/regimes", h.Regimes)
}

func (h *AnalysisHandler) Patterns(c echo.Context) error {
	req := &models.PatternScanRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := time.Now()
	res, err := h.patterns.Scan(c.Request().Context(), *req)
	metrics.Observe("patterns", start, err)
	return h.respond(c, "patterns", res, err)
}

func (h *AnalysisHandler) Evaluate(c echo.Context) error {
	req := &models.PatternEvaluateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := time.Now()
	res, err := h.patterns.Evaluate(c.Request().Context(), *req)
	metrics.Observe("patterns.evaluate", start, err)
	return h.respond(c, "patterns.evaluate", res, err)
}

func (h *AnalysisHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := time.Now()
	res, err := h.analysis.Indicators(c.Request().Context(), *req)
	metrics.Observe("indicators", start, err)
	return h.respond(c, "indicators", res, err)
}

func (h *AnalysisHandler) Regimes(c echo.Context) error {
	req := &models.RegimeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	start := time.Now()
	res, err := h.analysis.Regimes(c.Request().Context(), *req)
	metrics.Observe("regimes", start, err)
	return h.respond(c, "regimes", res, err)
}

func (h *AnalysisHandler) respond(c echo.Context, endpoint string, res interface{}, err error) error {
	if err != nil {
		h.logger.Warn(endpoint+" failed", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=15")
	return xhttp.SuccessResponse(c, res)
}
