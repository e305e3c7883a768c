package personality

import (
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/analysis"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
)

// Handler exposes POST /api/analyze-personality and GET /api/analyses[/{id}].
type Handler = analysis.Handler[entity.Response, entity.Analysis]

func NewHandler(svc *PersonalityService, logger *zap.SugaredLogger) *Handler {
	return &Handler{
		Noun:   "analysis",
		Plural: "analyses",
		Submit: svc.Analyze,
		List:   svc.List,
		Get:    svc.GetForUser,
		Logger: logger,
	}
}
