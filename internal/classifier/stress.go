package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"neurocare-api/internal/model"
)

// Completer sends a single user prompt to a language model and returns its text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const stressPrompt = `You are a stress category classifier. Analyze the following user's life problem and classify it into ONE category.

Available categories:
- academic_stress: School, college, exams, grades, coursework
- career_job_stress: Job search, work pressure, career decisions
- relationship_stress: Romantic relationships, dating, breakups
- friendship_social_stress: Friends, social life, peer pressure
- family_stress: Family conflicts, parents, siblings
- financial_stress: Money problems, debt, expenses
- self_esteem_confidence_stress: Self-worth, confidence, identity
- emotional_mental_overload: Anxiety, depression, overwhelming feelings
- health_physical_wellbeing_stress: Physical health, fitness, medical issues
- loneliness_isolation_stress: Feeling alone, disconnected, isolated

User's problem: "%s"

Respond with ONLY a JSON object: {"category": "one_of_the_categories"}`

func StressPrompt(issue string) string {
	return fmt.Sprintf(stressPrompt, issue)
}

// StressClassifier labels an issue description with one of the ten stress
// categories. It never substitutes a default; callers decide the fallback.
type StressClassifier struct {
	llm Completer
}

func NewStressClassifier(llm Completer) *StressClassifier {
	return &StressClassifier{llm: llm}
}

func (s *StressClassifier) Classify(ctx context.Context, issue string) (model.StressCategory, error) {
	reply, err := s.llm.Complete(ctx, StressPrompt(issue))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return ParseStressReply(reply)
}

// ParseStressReply decodes the first JSON object embedded in reply. Prose
// before or after the object is ignored.
func ParseStressReply(reply string) (model.StressCategory, error) {
	i := strings.IndexByte(reply, '{')
	if i < 0 {
		return "", fmt.Errorf("%w: no json object in reply", ErrUnavailable)
	}
	var out struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(strings.NewReader(reply[i:])).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode reply: %v", ErrUnavailable, err)
	}
	c, ok := model.ParseStressCategory(out.Category)
	if !ok {
		return "", fmt.Errorf("%w: unknown category %q", ErrUnavailable, out.Category)
	}
	return c, nil
}
