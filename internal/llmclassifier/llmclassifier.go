// Package llmclassifier implements the content classifier's third tier
// (C4): an LLM call that renders a site-type-specific prompt and tolerantly
// parses a WORTHY/CONFIDENCE/REASONING response.
package llmclassifier

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/demomirror/crawler/internal/model"
)

// Config configures the LLM tier. Model defaults to "gpt-4o-mini" and
// pricing defaults to that model's per-1K-token rate; override both for a
// different model.
type Config struct {
	APIKey           string
	Model            string
	InputPricePer1K  float64
	OutputPricePer1K float64
}

func (c Config) withDefaults() Config {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.InputPricePer1K == 0 {
		c.InputPricePer1K = 0.00015
	}
	if c.OutputPricePer1K == 0 {
		c.OutputPricePer1K = 0.0006
	}
	return c
}

// Client calls an OpenAI-compatible chat completion endpoint for the
// worthiness judgment.
type Client struct {
	cfg    Config
	openai *openai.Client
}

// New builds a Client. It returns an error if cfg.APIKey doesn't look like
// an OpenAI secret key, matching the teacher's fail-fast validation.
func New(cfg Config) (*Client, error) {
	cfg = cfg.withDefaults()
	if !strings.HasPrefix(cfg.APIKey, "sk-") {
		return nil, fmt.Errorf("llmclassifier: invalid or missing OpenAI API key")
	}
	return &Client{cfg: cfg, openai: openai.NewClient(cfg.APIKey)}, nil
}

const systemPrompt = "You are an expert at determining if web content is valuable for business demos. " +
	"Respond with WORTHY: true/false, CONFIDENCE: 0.0-1.0, REASONING: brief explanation."

// siteGuidance gives each business site type a short steer on what counts
// as demo-worthy, condensed from the cascade's site-specific evaluation
// criteria; the LLM fills in judgment, the guidance just sets the bar.
var siteGuidance = map[model.SiteType]string{
	model.SiteBanking: "Banking customers search for accounts, loans, cards, mortgages, investment services, " +
		"digital banking tools, financial education, and support content. Only filter broken pages, empty " +
		"placeholders, exact duplicates, and pure legal text with no banking context.",
	model.SiteEcommerce: "Mark worthy: products, categories, shopping features (cart, checkout, search, filters), " +
		"customer service, company info, reviews, account/order pages. Low value: broken or empty product pages, " +
		"pure legal text, internal admin tools.",
	model.SiteCorporate: "This is for a comprehensive search demo: include all services, pricing, company info, " +
		"case studies, whitepapers, investor relations, news, careers, and contact info. Low value: oversized PDFs " +
		"with no searchable text, broken pages, empty placeholders, internal login pages.",
	model.SiteTechnology: "Strong bias toward inclusion: products, platforms, R&D, industry applications, case " +
		"studies, technical resources, company capabilities. Low value: pure API docs with no business context, " +
		"legal-only pages, unexplained internal tooling, content-free marketing fluff.",
	model.SiteNews: "Moderate bias toward inclusion: diverse article topics, editorial sections, multimedia, " +
		"breaking news, local coverage, editorial-team pages. Low value: duplicate stories, pure promotion, stale " +
		"news with no historical value, bare social feeds.",
	model.SiteEducational: "High value: course catalogs, programs, faculty profiles, admissions info, research " +
		"and academic achievements, student services. Low value: broken pages, empty placeholders, pure " +
		"administrative boilerplate.",
	model.SiteHealthcare: "High value: services, providers, patient resources, treatment information, insurance " +
		"and scheduling info. Low value: broken pages, empty placeholders, pure legal/compliance text with no " +
		"care-related content.",
	model.SiteGovernment: "High value: services, public records, programs, forms, safety and community " +
		"information. Low value: broken pages, empty placeholders, duplicate boilerplate.",
	model.SiteLegal: "High value: practice areas, attorney profiles, case results, consultation info, resources. " +
		"Low value: broken pages, empty placeholders, pure disclaimers with no practice content.",
	model.SiteRealEstate: "High value: listings, agent profiles, market analysis, buying/selling guidance, " +
		"valuation tools. Low value: broken listings, empty placeholders, stale duplicate listings.",
	model.SiteRestaurant: "High value: menus, locations, reservations, catering, events, reviews. Low value: " +
		"broken pages, empty placeholders, duplicate location stubs.",
	model.SiteNonProfit: "High value: mission, programs, volunteer and donation information, impact stories. Low " +
		"value: broken pages, empty placeholders, pure administrative boilerplate.",
	model.SiteEntertainment: "High value: content catalogs, artist/show profiles, subscription and event info. " +
		"Low value: broken pages, empty placeholders, duplicate listing stubs.",
}

func buildPrompt(url, title, content string, siteType model.SiteType) string {
	preview := content
	if len(preview) > 800 {
		preview = preview[:800]
	}
	if preview == "" {
		preview = "No content provided"
	}

	guidance, ok := siteGuidance[siteType]
	if !ok {
		guidance = "Use general judgment: is this content something a business search demo audience would " +
			"plausibly look for? Filter broken pages, empty placeholders, and exact duplicates."
	}

	return fmt.Sprintf(
		"URL: %s\nTitle: %s\nContent Preview: %s\nSite Type: %s\n\n%s\n\n"+
			"Respond with: WORTHY: true/false, CONFIDENCE: 0.0-1.0, REASONING: brief explanation",
		url, title, preview, siteType, guidance,
	)
}

// Classify sends one chat-completion request and returns a
// ClassificationResult with Method=MethodLLM, including the token usage and
// estimated cost needed for run-level cost tracking.
func (c *Client) Classify(ctx context.Context, url, title, content string, siteType model.SiteType) (model.ClassificationResult, error) {
	prompt := buildPrompt(url, title, content, siteType)

	resp, err := c.openai.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   150,
		Temperature: 0.1,
	})
	if err != nil {
		return model.ClassificationResult{}, fmt.Errorf("llmclassifier: chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.ClassificationResult{}, fmt.Errorf("llmclassifier: empty response")
	}

	content0 := strings.TrimSpace(resp.Choices[0].Message.Content)
	isWorthy, confidence, reasoning := parseVerdict(content0)

	inputCost := float64(resp.Usage.PromptTokens) / 1000 * c.cfg.InputPricePer1K
	outputCost := float64(resp.Usage.CompletionTokens) / 1000 * c.cfg.OutputPricePer1K

	return model.ClassificationResult{
		IsWorthy:         isWorthy,
		Confidence:       confidence,
		Reasoning:        "AI: " + reasoning,
		Method:           model.MethodLLM,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
		EstimatedCost:    inputCost + outputCost,
	}, nil
}

var confidenceNumberRe = regexp.MustCompile(`(\d*\.?\d+)`)

// parseVerdict tolerantly extracts WORTHY/CONFIDENCE/REASONING from a free-
// form model response. A missing or unrecognized WORTHY field defaults to
// false, erring toward exclusion rather than inclusion; confidence defaults
// to 0.7 and reasoning to the full text when those fields are absent.
func parseVerdict(content string) (isWorthy bool, confidence float64, reasoning string) {
	isWorthy = false
	confidence = 0.7
	reasoning = content

	lower := strings.ToLower(content)

	if idx := strings.Index(lower, "worthy:"); idx != -1 {
		rest := strings.TrimSpace(lower[idx+len("worthy:"):])
		fields := strings.Fields(rest)
		word := ""
		if len(fields) > 0 {
			word = strings.NewReplacer(",", "", ".", "", ";", "").Replace(fields[0])
		}
		switch word {
		case "false", "no", "0":
			isWorthy = false
		case "true", "yes", "1":
			isWorthy = true
		default:
			isWorthy = false
		}
	}

	if idx := strings.Index(lower, "confidence:"); idx != -1 {
		confLine := strings.TrimSpace(lower[idx+len("confidence:"):])
		if m := confidenceNumberRe.FindString(confLine); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				if v > 1.0 {
					v = v / 100.0
				}
				confidence = v
			}
		}
	}

	if idx := strings.Index(lower, "reasoning:"); idx != -1 {
		if trimmed := strings.TrimSpace(content[idx+len("reasoning:"):]); trimmed != "" {
			reasoning = trimmed
		}
	}

	return isWorthy, confidence, reasoning
}
