package api

import (
	"errors"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
	"PatternLab/internal/services/backtest"
	"PatternLab/internal/usecase"
	xhttp "PatternLab/pkg/http"
)

// toAppError maps domain errors to HTTP statuses. Anything unmapped is a 500.
func toAppError(err error) error {
	switch {
	case errors.Is(err, models.ErrDataQuality):
		appErr := xhttp.UnprocessableError(err.Error()).WithError(err)
		var dq *models.DataQualityError
		if errors.As(err, &dq) {
			appErr.WithParam("index", dq.Index).WithParam("timestamp", dq.Timestamp)
		}
		return appErr
	case errors.Is(err, models.ErrDataInsufficient):
		return xhttp.UnprocessableError(err.Error()).WithCode("ERR_DATA_INSUFFICIENT").WithError(err)
	case errors.Is(err, domrepo.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, usecase.ErrInvalidParams),
		errors.Is(err, usecase.ErrOracleUnavailable),
		errors.Is(err, backtest.ErrInvalidConfig):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	}
	return err
}
