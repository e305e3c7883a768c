package personality

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality/entity"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/vision"
)

const prompt = `Look at the face in this photo and give a light-hearted personality reading.
Estimate an MBTI type and Big Five trait scores from 0 to 100. Write every text field in both Korean ("ko") and English ("en").
Respond only with JSON in exactly this structure:
{
  "mbtiType": "one of the 16 MBTI codes, e.g. ENFP",
  "confidence": "high|medium|low",
  "traits": {"openness": number, "conscientiousness": number, "extraversion": number, "agreeableness": number, "neuroticism": number},
  "analysis": {"ko": "overall impression", "en": "overall impression"},
  "strengths": {"ko": "strengths", "en": "strengths"},
  "weaknesses": {"ko": "weaknesses", "en": "weaknesses"},
  "recommendations": {"ko": "suggestions", "en": "suggestions"}
}`

var fallback = entity.Result{
	MBTIType:   "INFP",
	Confidence: "medium",
	Traits: entity.Traits{
		Openness:          50,
		Conscientiousness: 50,
		Extraversion:      50,
		Agreeableness:     50,
		Neuroticism:       50,
	},
	Analysis: entity.Localized{
		Ko: "상세 분석을 불러오지 못했습니다.",
		En: "Unable to parse detailed analysis",
	},
	Strengths: entity.Localized{
		Ko: "일반적인 성격 강점이 적용됩니다.",
		En: "General personality strengths apply",
	},
	Weaknesses: entity.Localized{
		Ko: "일반적인 성격 약점이 적용됩니다.",
		En: "General personality weaknesses apply",
	},
	Recommendations: entity.Localized{
		Ko: "다른 사진으로 다시 시도해 보세요.",
		En: "Try again with a clearer photo",
	},
}

var mbtiPattern = regexp.MustCompile(`^[EI][SN][TF][JP]$`)

func init() {
	if err := vision.RegisterValidation("mbti", func(fl validator.FieldLevel) bool {
		return mbtiPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	}); err != nil {
		panic(err)
	}
}

// normalize upper-cases the MBTI code before validation.
func normalize(r *entity.Result) {
	r.MBTIType = strings.ToUpper(strings.TrimSpace(r.MBTIType))
}
