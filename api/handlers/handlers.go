package handlers

import (
	"github.com/wpliao1997/estimation-validator/internal/service/estimation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

type Handlers struct {
	Estimation *EstimationHandler
}

func NewHandlers(
	service estimation.EstimationProcessor,
	logger logger.Logger,
) *Handlers {
	return &Handlers{
		Estimation: NewEstimationHandler(service, logger),
	}
}
