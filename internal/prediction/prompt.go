package prediction

import "github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction/entity"

const prompt = `Please analyze this face image and predict the person's age. Also, describe how this person might look in 20 years.
Respond in JSON format with the following structure:
{
  "predictedAge": number,
  "futureAge": number (current age + 20),
  "confidence": "high|medium|low",
  "analysis": "Brief description of facial features and aging prediction",
  "futureDescription": "Detailed description of how the person might look in 20 years including changes in skin, hair, facial structure"
}`

// fallback is stored and returned when the model reply cannot be used.
var fallback = entity.Result{
	PredictedAge:      25,
	FutureAge:         45,
	Confidence:        "medium",
	Analysis:          "Unable to parse detailed analysis",
	FutureDescription: "General aging predictions apply",
}
