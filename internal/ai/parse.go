package ai

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kiranshivaraju/repograder/pkg/models"
)

// responseSchema is the minimal contract a model reply must meet. Fields other
// than criterionScores are tolerated when missing.
const responseSchema = `{
  "type": "object",
  "required": ["criterionScores"],
  "properties": {
    "criterionScores": {
      "type": "array",
      "items": {"type": "object"}
    },
    "whatWorkedWell": {"type": "array"},
    "opportunitiesForImprovement": {"type": "array"}
  }
}`

var schema = mustSchema(responseSchema)

func mustSchema(s string) *gojsonschema.Schema {
	sc, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return sc
}

// ExtractJSONObject returns the first balanced {...} object in text. Braces
// inside JSON strings are ignored.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end, ok := matchObject(text, start); ok {
			return text[start : end+1], true
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchObject returns the index of the brace closing the object opened at start.
func matchObject(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseResponse extracts and validates the evaluation in a model reply. When
// the reply has no overall score, the mean of the criterion scores is used.
func ParseResponse(text string) (*models.AIEvaluation, error) {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("%w: no JSON object in response", ErrParseFailure)
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(obj))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrParseFailure, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrParseFailure, strings.Join(msgs, "; "))
	}

	var ev models.AIEvaluation
	if err := json.Unmarshal([]byte(obj), &ev); err != nil {
		return nil, fmt.Errorf("%w: decoding evaluation: %v", ErrParseFailure, err)
	}

	if (ev.OverallScore == nil || *ev.OverallScore == 0) && len(ev.CriterionScores) > 0 {
		mean := models.FlexFloat(MeanScore(ev.CriterionScores))
		ev.OverallScore = &mean
	}
	return &ev, nil
}

// MeanScore is the arithmetic mean of the scores, rounded to two decimals.
func MeanScore(scores []models.AICriterionScore) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += float64(s.Score)
	}
	return math.Round(sum/float64(len(scores))*100) / 100
}
