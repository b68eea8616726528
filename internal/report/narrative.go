package report

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadreport/internal/model"
	"github.com/sells-group/leadreport/pkg/anthropic"
	"github.com/sells-group/leadreport/pkg/apollo"
)

const narrativePrompt = `Write a concise narrative lead report (3 to 5 paragraphs of plain prose,
no headings, no JSON, no markdown) covering: who the lead is, what their
company does, why they might be a good fit, and anything notable about
timing or context. Ground every statement in the facts above.`

// maxTagCount bounds the tags derived from organization keywords.
const maxTagCount = 5

// GenerateNarrative produces the long-form narrative for a report. This is
// a mandatory pipeline step: failure is terminal for the report.
func (g *Generator) GenerateNarrative(ctx context.Context, lead *model.LeadData, rec *apollo.PersonRecord) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.cfg.SonnetModel,
		MaxTokens: int64(g.maxTokens()),
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildFactSheet(lead, rec) + "\n\n" + narrativePrompt},
		},
	})
	if err != nil {
		return "", eris.Wrap(err, "generator: narrative")
	}
	resp.Usage.LogCost(g.cfg.SonnetModel, "narrative")

	text := strings.TrimSpace(extractText(resp))
	if text == "" {
		return "", eris.New("generator: empty narrative")
	}
	return text, nil
}

// BuildLeadData projects the enrichment record into the denormalized lead
// fields downstream consumers read. Submitter-owned fields (meeting details,
// project, problem pitch) are carried from the request verbatim; the
// pipeline re-asserts them but never rewrites them from enrichment data.
func BuildLeadData(req SubmitRequest, rec *apollo.PersonRecord) *model.LeadData {
	lead := &model.LeadData{
		Email:           req.Email,
		Status:          "new",
		MeetingDate:     req.MeetingDate,
		MeetingTime:     req.MeetingTime,
		MeetingPlatform: req.MeetingPlatform,
		ProblemPitch:    req.ProblemPitch,
		Project:         req.Project,
	}
	if rec == nil {
		return lead
	}

	p := rec.Person
	org := rec.Organization

	lead.Name = p.Name
	if lead.Name == "" {
		lead.Name = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	lead.Position = p.Title
	lead.LinkedInURL = p.LinkedInURL
	lead.Location = joinLocation(p.City, p.State, p.Country)

	lead.CompanyName = org.Name
	lead.CompanyWebsite = org.WebsiteURL
	lead.CompanyIndustry = org.Industry
	lead.CompanySize = org.EstimatedNumEmployees
	lead.CompanyRevenue = org.AnnualRevenuePrinted
	lead.CompanySummary = org.ShortDescription
	lead.Phone = org.Phone

	lead.LeadScore = scoreLead(p, org)
	if len(org.Keywords) > 0 {
		n := len(org.Keywords)
		if n > maxTagCount {
			n = maxTagCount
		}
		lead.Tags = org.Keywords[:n]
	}
	return lead
}

// leadPatch renders the enrichment-derived and re-asserted fields as a
// merge patch for the store. Only fields the pipeline owns appear; anything
// a concurrent editor set on other keys survives the merge.
func leadPatch(lead *model.LeadData) map[string]any {
	patch := make(map[string]any)
	add := func(key, val string) {
		if val != "" {
			patch[key] = val
		}
	}
	add("name", lead.Name)
	add("position", lead.Position)
	add("company_name", lead.CompanyName)
	add("email", lead.Email)
	add("phone", lead.Phone)
	add("linkedin_url", lead.LinkedInURL)
	add("location", lead.Location)
	add("company_website", lead.CompanyWebsite)
	add("company_industry", lead.CompanyIndustry)
	add("company_revenue", lead.CompanyRevenue)
	add("company_summary", lead.CompanySummary)
	add("status", lead.Status)
	if lead.CompanySize > 0 {
		patch["company_size"] = lead.CompanySize
	}
	if lead.LeadScore > 0 {
		patch["lead_score"] = lead.LeadScore
	}
	if len(lead.Tags) > 0 {
		patch["tags"] = lead.Tags
	}
	for k, v := range lead.MeetingFields() {
		patch[k] = v
	}
	return patch
}

// scoreLead is a simple 0-100 heuristic from title seniority and company
// size. It seeds prioritization in downstream tooling, nothing more.
func scoreLead(p apollo.Person, org apollo.Organization) int {
	score := 30

	seniority := strings.ToLower(p.Seniority)
	title := strings.ToLower(p.Title)
	switch {
	case seniority == "c_suite" || seniority == "founder" ||
		strings.Contains(title, "chief") || strings.Contains(title, "founder"):
		score += 40
	case seniority == "vp" || strings.Contains(title, "vp") ||
		strings.Contains(title, "vice president"):
		score += 30
	case seniority == "director" || strings.Contains(title, "director"):
		score += 20
	case seniority == "manager" || strings.Contains(title, "manager"):
		score += 10
	}

	switch {
	case org.EstimatedNumEmployees >= 1000:
		score += 20
	case org.EstimatedNumEmployees >= 100:
		score += 15
	case org.EstimatedNumEmployees >= 10:
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

func joinLocation(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, strings.TrimSpace(p))
		}
	}
	return strings.Join(nonEmpty, ", ")
}
