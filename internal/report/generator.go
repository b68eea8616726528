package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadreport/internal/config"
	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/pkg/anthropic"
	"github.com/sells-group/leadreport/pkg/apollo"
)

// systemPrompt constrains every section call to JSON output grounded in the
// supplied facts. Shared across the narrative and all eight sections so the
// provider-side prompt cache stays warm for the whole report.
const systemPrompt = `You are a B2B sales research assistant preparing a lead report.
Use ONLY the facts provided in the user message. Clearly separate facts about
the specific company from general industry knowledge, and never invent names,
numbers, or events. When the provided data cannot support a section, return
{"insufficient_data": true} instead of guessing.
When asked for JSON, respond with a single valid JSON object and nothing else.`

// Generator builds section prompts, calls the LLM provider, and returns the
// raw untrusted JSON value for normalization.
type Generator struct {
	client anthropic.Client
	cfg    config.AnthropicConfig
}

// NewGenerator creates a Generator backed by the given provider client.
func NewGenerator(client anthropic.Client, cfg config.AnthropicConfig) *Generator {
	return &Generator{client: client, cfg: cfg}
}

// Generate produces the raw JSON value for one section. The returned value
// is untrusted: callers must pass it through Normalize before persisting.
func (g *Generator) Generate(ctx context.Context, section string, lead *model.LeadData, rec *apollo.PersonRecord) (any, error) {
	instruction, ok := sectionPrompts[section]
	if !ok {
		return nil, eris.Errorf("generator: unknown section %q", section)
	}

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.HaikuModel,
		MaxTokens: int64(g.maxTokens()),
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildFactSheet(lead, rec) + "\n\n" + instruction},
		},
	})
	if err != nil {
		return nil, eris.Wrapf(err, "generator: %s", section)
	}
	resp.Usage.LogCost(g.cfg.HaikuModel, "section:"+section)

	raw, err := parseRaw(extractText(resp))
	if err != nil {
		return nil, &ParseError{Section: section, Raw: extractText(resp), Err: err}
	}
	return raw, nil
}

func (g *Generator) maxTokens() int {
	if g.cfg.MaxTokens > 0 {
		return g.cfg.MaxTokens
	}
	return 4096
}

// buildFactSheet renders the known lead and enrichment facts as a plain
// prompt block. Absent fields are omitted entirely rather than sent empty.
func buildFactSheet(lead *model.LeadData, rec *apollo.PersonRecord) string {
	var b strings.Builder
	b.WriteString("Lead facts:\n")

	add := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}

	if lead != nil {
		add("Name", lead.Name)
		add("Position", lead.Position)
		add("Company", lead.CompanyName)
		add("Location", lead.Location)
		add("Meeting date", lead.MeetingDate)
		add("Meeting platform", lead.MeetingPlatform)
		add("Problem pitch", lead.ProblemPitch)
		add("Project", lead.Project)
	}
	if rec != nil {
		add("Title", rec.Person.Title)
		add("Seniority", rec.Person.Seniority)
		add("Departments", strings.Join(rec.Person.Departments, ", "))
		org := rec.Organization
		add("Company name", org.Name)
		add("Company website", org.WebsiteURL)
		add("Industry", org.Industry)
		add("Company description", org.ShortDescription)
		add("Company keywords", strings.Join(org.Keywords, ", "))
		add("Technologies in use", strings.Join(org.Technologies, ", "))
		if org.EstimatedNumEmployees > 0 {
			add("Employee count", fmt.Sprintf("%d", org.EstimatedNumEmployees))
		}
		add("Annual revenue", org.AnnualRevenuePrinted)
		if org.FoundedYear > 0 {
			add("Founded", fmt.Sprintf("%d", org.FoundedYear))
		}
	}
	return b.String()
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// parseRaw tolerates the three response shapes the provider produces: a
// direct JSON value, a JSON string containing JSON, and free text with an
// embedded object recovered by outermost-brace extraction.
func parseRaw(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.New("empty response")
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		if s, ok := v.(string); ok {
			// JSON string wrapping JSON: one nested parse attempt.
			var inner any
			if err := json.Unmarshal([]byte(s), &inner); err == nil {
				return inner, nil
			}
		}
		return v, nil
	}

	cleaned := cleanJSON(text)
	if err := json.Unmarshal([]byte(cleaned), &v); err != nil {
		zap.L().Debug("unparseable model response", zap.String("text", truncate(text, 200)))
		return nil, eris.Wrap(err, "parse model response")
	}
	return v, nil
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}
