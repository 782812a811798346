// Package validate runs an AI credibility pass over candidates before
// they are delivered. Each candidate headline and draft is assessed for
// financial relevance and source credibility; candidates below the
// configured threshold are dropped.
package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/edgard/newsradar/internal/model"
)

const systemInstruction = "Ты эксперт-валидатор финансовых новостей. " +
	"Оцени новость и верни ответ строго в JSON формате с полями: " +
	"is_financial (1/0), credibility_score (0-10), explanation."

// Verdict is the structured assessment of one candidate.
type Verdict struct {
	IsFinancial      int     `json:"is_financial"`
	CredibilityScore float64 `json:"credibility_score"`
	Explanation      string  `json:"explanation"`
}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"is_financial":      {Type: genai.TypeInteger, Description: "1 если новость относится к финансам/экономике, 0 если нет"},
		"credibility_score": {Type: genai.TypeNumber, Description: "Оценка достоверности источника от 0 до 10"},
		"explanation":       {Type: genai.TypeString, Description: "Короткое объяснение оценки"},
	},
	Required: []string{"is_financial", "credibility_score", "explanation"},
}

// Validator assesses candidates through the Gemini API.
type Validator struct {
	client   *genai.Client
	model    string
	minScore float64
	log      *slog.Logger
}

// New creates a validator. The API key is required; callers decide at
// wiring time whether to run the pass at all.
func New(ctx context.Context, apiKey, modelName string, minScore float64, log *slog.Logger) (*Validator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("validator API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	logger := log.With("component", "validator")
	logger.Info("Validator initialized", "model", modelName, "min_score", minScore)
	return &Validator{
		client:   client,
		model:    modelName,
		minScore: minScore,
		log:      logger,
	}, nil
}

// Assess returns the model's verdict for a single candidate.
func (v *Validator) Assess(ctx context.Context, cand *model.Candidate) (*Verdict, error) {
	var sb strings.Builder
	sb.WriteString("Заголовок: " + cand.Headline + "\n")
	sb.WriteString("Контент: " + cand.Draft.Lede + "\n")
	for _, src := range cand.Sources {
		sb.WriteString("Источник: " + src.URL + "\n")
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    verdictSchema,
	}
	contents := []*genai.Content{genai.NewContentFromText(sb.String(), genai.RoleUser)}

	resp, err := v.client.Models.GenerateContent(ctx, v.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("validator API call failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("validator returned empty response")
	}

	verdict := &Verdict{}
	if err := json.Unmarshal([]byte(text), verdict); err != nil {
		return nil, fmt.Errorf("invalid verdict JSON: %w", err)
	}
	return verdict, nil
}

// Filter keeps candidates that are financial and meet the minimum
// credibility score. A failed assessment keeps the candidate; dropping
// news on an API hiccup is worse than letting an editor see it.
func (v *Validator) Filter(ctx context.Context, candidates []*model.Candidate) []*model.Candidate {
	var kept []*model.Candidate
	for _, cand := range candidates {
		verdict, err := v.Assess(ctx, cand)
		if err != nil {
			v.log.WarnContext(ctx, "Assessment failed, keeping candidate", "headline", cand.Headline, "error", err)
			kept = append(kept, cand)
			continue
		}

		if verdict.IsFinancial != 1 || verdict.CredibilityScore < v.minScore {
			v.log.InfoContext(ctx, "Candidate dropped by validator",
				"headline", cand.Headline,
				"is_financial", verdict.IsFinancial,
				"credibility_score", verdict.CredibilityScore)
			continue
		}
		kept = append(kept, cand)
	}
	return kept
}
