package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-consolidator/internal/profile"
	"github.com/sells-group/profile-consolidator/pkg/anthropic"
)

// llmParseFailConfidence is the neutral verdict when the model responds
// with something we cannot parse. The raw text is kept for review.
const llmParseFailConfidence = 0.5

const llmSystemPrompt = `You are a meticulous data-quality reviewer for company profiles.
Given structured fields about a company, judge whether each value is plausible and internally consistent.
Respond with ONLY a JSON object of the form:
{"verdicts": [{"field_name": "...", "is_valid": true, "confidence": 0.0, "validated_value": "", "reason": ""}]}
Confidence is a number from 0 to 1. Include one verdict per field you were given.`

// LLMValidator sanity-checks profile fields with a small model. It covers
// the categories no hard source exists for.
type LLMValidator struct {
	client   anthropic.Client
	model    string
	category string
}

// NewLLMValidator creates an LLM validator scoped to one category
// (basic_info, financial, or personnel).
func NewLLMValidator(client anthropic.Client, model, category string) *LLMValidator {
	return &LLMValidator{client: client, model: model, category: category}
}

func (v *LLMValidator) Name() string { return "llm_" + v.category }

func (v *LLMValidator) Categories() []string {
	return []string{v.category}
}

// llmVerdictResponse mirrors the JSON shape the prompt requests.
type llmVerdictResponse struct {
	Verdicts []struct {
		FieldName      string  `json:"field_name"`
		IsValid        bool    `json:"is_valid"`
		Confidence     float64 `json:"confidence"`
		ValidatedValue string  `json:"validated_value"`
		Reason         string  `json:"reason"`
	} `json:"verdicts"`
}

func (v *LLMValidator) Validate(ctx context.Context, p *profile.MasterProfile) ([]Verdict, error) {
	fields := v.categoryFields(p)
	if len(fields) == 0 {
		return nil, nil
	}

	payload, err := json.Marshal(fields)
	if err != nil {
		return nil, eris.Wrap(err, "validate: marshal llm fields")
	}

	resp, err := v.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     v.model,
		MaxTokens: 1024,
		System:    []anthropic.SystemBlock{{Text: llmSystemPrompt}},
		Messages: []anthropic.Message{{
			Role: "user",
			Content: fmt.Sprintf("Company: %s\nCategory: %s\nFields:\n%s",
				p.CompanyName, v.category, payload),
		}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "validate: llm request")
	}
	resp.Usage.LogCost(v.model, "validate_"+v.category)

	text := resp.Text()
	parsed, perr := parseLLMVerdicts(text)
	if perr != nil {
		// An unparseable answer is neutral, not a failure: keep the raw
		// text so a reviewer can see what the model said.
		return []Verdict{{
			FieldName:         "llm_" + v.category,
			Method:            "llm_review",
			IsValid:           true,
			Confidence:        llmParseFailConfidence,
			DiscrepancyReason: "unparseable model response",
			Raw:               []byte(text),
		}}, nil
	}

	verdicts := make([]Verdict, 0, len(parsed.Verdicts))
	for _, pv := range parsed.Verdicts {
		conf := pv.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		verdicts = append(verdicts, Verdict{
			FieldName:         pv.FieldName,
			OriginalValue:     fields[pv.FieldName],
			ValidatedValue:    pv.ValidatedValue,
			Method:            "llm_review",
			IsValid:           pv.IsValid,
			Confidence:        conf,
			DiscrepancyReason: pv.Reason,
		})
	}
	return verdicts, nil
}

// categoryFields selects the non-empty profile fields this validator's
// category covers, rendered as text for the prompt.
func (v *LLMValidator) categoryFields(p *profile.MasterProfile) map[string]string {
	fields := map[string]string{}
	put := func(name, value string) {
		if value != "" {
			fields[name] = value
		}
	}
	putJSON := func(name string, value any, present bool) {
		if !present {
			return
		}
		if raw, err := json.Marshal(value); err == nil {
			fields[name] = string(raw)
		}
	}

	switch v.category {
	case CategoryBasicInfo:
		put("industry", p.Industry)
		put("headquarters", p.Headquarters)
		put("business_model", p.BusinessModel)
		put("description", p.Description)
		if p.FoundedYear != nil {
			fields["founded_year"] = fmt.Sprintf("%d", *p.FoundedYear)
		}
	case CategoryFinancial:
		if p.EmployeeCount != nil {
			fields["employee_count"] = fmt.Sprintf("%d", *p.EmployeeCount)
		}
		if p.RevenueEstimate != nil {
			fields["revenue_estimate"] = fmt.Sprintf("%d", *p.RevenueEstimate)
		}
		putJSON("financial_metrics", p.FinancialMetrics, p.FinancialMetrics != nil)
		putJSON("funding_rounds", p.FundingRounds, len(p.FundingRounds) > 0)
	case CategoryPersonnel:
		putJSON("key_executives", p.KeyExecutives, len(p.KeyExecutives) > 0)
	}
	return fields
}

// parseLLMVerdicts finds the JSON object in the response text; the model
// may wrap it in prose.
func parseLLMVerdicts(text string) (*llmVerdictResponse, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end <= start {
		return nil, eris.Errorf("validate: no JSON in llm response")
	}

	var out llmVerdictResponse
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, eris.Wrap(err, "validate: parse llm response")
	}
	if len(out.Verdicts) == 0 {
		return nil, eris.New("validate: llm response has no verdicts")
	}
	return &out, nil
}
