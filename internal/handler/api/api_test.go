package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/usecase"
	xlogger "PatternLab/pkg/logger"
)

type fakeBacktests struct {
	lastReq models.BacktestRequest
	runErr  error
}

func (f *fakeBacktests) Run(_ context.Context, req models.BacktestRequest) (*usecase.BacktestReport, error) {
	f.lastReq = req
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &usecase.BacktestReport{Result: &models.BacktestResult{RunID: "r1", Symbol: req.Symbol}}, nil
}

func (f *fakeBacktests) Get(_ context.Context, id string) (*models.BacktestResult, error) {
	if id != "r1" {
		return nil, fmt.Errorf("result %s: %w", id, domrepo.ErrNotFound)
	}
	return &models.BacktestResult{RunID: "r1"}, nil
}

func (f *fakeBacktests) List(context.Context, string, int) ([]models.BacktestSummary, error) {
	return []models.BacktestSummary{{RunID: "r1"}}, nil
}

type fakeQueue struct{ submitted []models.BacktestRequest }

func (q *fakeQueue) SubmitBacktest(_ context.Context, req models.BacktestRequest) (string, error) {
	q.submitted = append(q.submitted, req)
	return "job-1", nil
}

type fakeAnalysis struct {
	scanErr error
	lastReq models.PatternScanRequest
}

func (f *fakeAnalysis) Scan(_ context.Context, req models.PatternScanRequest) (*usecase.PatternScan, error) {
	f.lastReq = req
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return &usecase.PatternScan{Symbol: req.Symbol, Patterns: []models.Pattern{}}, nil
}

func (f *fakeAnalysis) Evaluate(context.Context, models.PatternEvaluateRequest) (*models.PatternEvaluation, error) {
	return &models.PatternEvaluation{Accuracy: 0.5}, nil
}

func (f *fakeAnalysis) Indicators(_ context.Context, req models.IndicatorRequest) (*usecase.IndicatorReport, error) {
	return &usecase.IndicatorReport{Symbol: req.Symbol, Rows: make([]usecase.IndicatorRow, req.Last)}, nil
}

func (f *fakeAnalysis) Regimes(context.Context, models.RegimeRequest) (*usecase.RegimeReport, error) {
	return nil, models.ErrDataInsufficient
}

func newServer(bt *fakeBacktests, q domrepo.JobQueue, an *fakeAnalysis) *echo.Echo {
	e := echo.New()
	NewBacktestHandler(xlogger.Nop(), bt, q).RegisterRoutes(e)
	NewAnalysisHandler(xlogger.Nop(), an, an).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestCreateBacktestAppliesDefaults(t *testing.T) {
	bt := &fakeBacktests{}
	e := newServer(bt, nil, &fakeAnalysis{})
	rec := do(e, http.MethodPost, "/api/backtests", `{"symbol":"BTC"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if bt.lastReq.TF != "1h" || bt.lastReq.InitialCapital != 100000 || bt.lastReq.ExitPolicy != "stop_target" {
		t.Fatalf("defaults not applied: %+v", bt.lastReq)
	}
}

func TestCreateBacktestValidation(t *testing.T) {
	e := newServer(&fakeBacktests{}, nil, &fakeAnalysis{})
	rec := do(e, http.MethodPost, "/api/backtests", `{"symbol":"BTC","exit_policy":"trailing"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "ERR_ONEOF") {
		t.Fatalf("expected oneof error, got %s", rec.Body.String())
	}
}

func TestCreateBacktestAsync(t *testing.T) {
	q := &fakeQueue{}
	e := newServer(&fakeBacktests{}, q, &fakeAnalysis{})
	rec := do(e, http.MethodPost, "/api/backtests?async=true", `{"symbol":"ETH"}`)
	if rec.Code != http.StatusAccepted || len(q.submitted) != 1 {
		t.Fatalf("status %d submitted %d", rec.Code, len(q.submitted))
	}
	if !strings.Contains(rec.Body.String(), "job-1") {
		t.Fatalf("job id missing: %s", rec.Body.String())
	}

	e = newServer(&fakeBacktests{}, nil, &fakeAnalysis{})
	if rec := do(e, http.MethodPost, "/api/backtests?async=true", `{"symbol":"ETH"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("async without queue should be 400, got %d", rec.Code)
	}
}

func TestBacktestErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&models.DataQualityError{Index: 3, Timestamp: time.Unix(0, 0), Reason: "gap"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("load: %w", models.ErrDataInsufficient), http.StatusUnprocessableEntity},
		{usecase.ErrOracleUnavailable, http.StatusBadRequest},
		{errors.New("clickhouse down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := newServer(&fakeBacktests{runErr: tc.err}, nil, &fakeAnalysis{})
		if rec := do(e, http.MethodPost, "/api/backtests", `{"symbol":"BTC"}`); rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestGetBacktest(t *testing.T) {
	e := newServer(&fakeBacktests{}, nil, &fakeAnalysis{})
	if rec := do(e, http.MethodGet, "/api/backtests/r1", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/backtests/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/backtests?limit=9999", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit, got %d", rec.Code)
	}
	rec := do(e, http.MethodGet, "/api/backtests", "")
	var body struct {
		Data struct {
			Total int64 `json:"total"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body.Data.Total != 1 {
		t.Fatalf("list body %s err %v", rec.Body.String(), err)
	}
}

func TestPatternsQueryBinding(t *testing.T) {
	an := &fakeAnalysis{}
	e := newServer(&fakeBacktests{}, nil, an)
	rec := do(e, http.MethodGet, "/api/patterns?symbol=BTC&tf=4h&types=double_top&types=orderblock&skip_validation=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	if an.lastReq.TF != "4h" || len(an.lastReq.Types) != 2 || !an.lastReq.SkipValidation || an.lastReq.Threshold != 0.7 {
		t.Fatalf("unexpected request %+v", an.lastReq)
	}
	if rec := do(e, http.MethodGet, "/api/patterns?symbol=BTC&types=triangle", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type should be 400, got %d", rec.Code)
	}
}

func TestAnalysisEndpoints(t *testing.T) {
	e := newServer(&fakeBacktests{}, nil, &fakeAnalysis{})
	if rec := do(e, http.MethodGet, "/api/indicators?symbol=BTC&last=5", ""); rec.Code != http.StatusOK {
		t.Fatalf("indicators: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/indicators", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("indicators without symbol: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/patterns/evaluate?symbol=BTC", ""); rec.Code != http.StatusOK {
		t.Fatalf("evaluate: %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/regimes?symbol=BTC", ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("regimes: %d", rec.Code)
	}
}
