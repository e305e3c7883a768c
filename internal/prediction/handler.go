package prediction

import (
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/entity"
)

// Handler exposes POST /api/predict-age and GET /api/predictions[/{id}].
type Handler = analysis.Handler[entity.Response, entity.Prediction]

func NewHandler(svc *PredictionService, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		Noun:   "prediction",
		Plural: "predictions",
		Submit: svc.Predict,
		List:   svc.List,
		Get:    svc.GetForUser,
		Logger: logger,
	}
}
