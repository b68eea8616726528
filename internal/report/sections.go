package report

import "github.com/sells-group/leadreport/internal/model"

// Character budgets for text fields, applied after coercion and before
// storage. Fields absent from the map are stored untruncated.
var textBudgets = map[string]int{
	"summary":                  200,
	"description":              200,
	"marketPosition":           150,
	"competitiveAdvantage":     150,
	"marketDynamics":           150,
	"communicationPreferences": 150,
	"dosDonts":                 200,
	"suggestedAgenda":          200,
}

// Default item caps for list fields.
var defaultListCaps = map[string]int{
	"keyPoints":              3,
	"challenges":             3,
	"competitors":            3,
	"mainCompetitors":        3,
	"currentTechnologies":    3,
	"relevantIndustryTrends": 3,
	"painPoints":             3,
	"opportunities":          3,
	"recommendations":        3,
	"recommendedActions":     3,
	"keyQuestions":           3,
	"personalizationTips":    3,
}

// Per-section cap overrides for the fields whose budget varies by section.
var sectionListCaps = map[string]map[string]int{
	model.SectionTechStack: {
		"painPoints": 2,
	},
	model.SectionInteractions: {
		"personalizationTips": 2,
	},
	model.SectionNextSteps: {
		"recommendedActions": 2,
		"keyQuestions":       2,
		"opportunities":      2,
	},
}

// policyFields carry recommendation-flavored content. They are stripped from
// every section except nextSteps and interactions, even when the model
// supplies them well-formed.
var policyFields = map[string]bool{
	"opportunities":       true,
	"recommendations":     true,
	"recommendedActions":  true,
	"personalizationTips": true,
}

// policyExemptSections keep their recommendation-flavored fields.
var policyExemptSections = map[string]bool{
	model.SectionNextSteps:    true,
	model.SectionInteractions: true,
}

func listCap(section, field string) int {
	if caps, ok := sectionListCaps[section]; ok {
		if n, ok := caps[field]; ok {
			return n
		}
	}
	if n, ok := defaultListCaps[field]; ok {
		return n
	}
	return 0
}

// sectionPrompts maps each section to the instruction appended to the fact
// sheet in the user prompt. Each names the exact JSON fields expected back.
var sectionPrompts = map[string]string{
	model.SectionOverview: `Write a lead overview. Return a JSON object with:
"summary" (string, one or two sentences on who this lead is and why they matter),
"keyPoints" (array of up to 3 short strings),
"description" (string, brief profile of the person and their role).`,

	model.SectionCompany: `Describe the lead's company. Return a JSON object with:
"description" (string, what the company does),
"marketPosition" (string, where it sits in its market),
"challenges" (array of up to 3 short strings, business challenges it likely faces),
"competitors" (array of up to 3 company names).`,

	model.SectionMeeting: `Prepare meeting guidance. Return a JSON object with:
"suggestedAgenda" (string, a short proposed agenda),
"keyQuestions" (array of up to 3 questions to ask),
"preparationTips" (string, how to prepare).`,

	model.SectionInteractions: `Advise on interacting with this lead. Return a JSON object with:
"communicationPreferences" (string, how this person likely prefers to communicate),
"personalizationTips" (array of up to 2 short strings),
"dosDonts" (object with "do" and "dont" arrays of short strings).`,

	model.SectionCompetitors: `Analyze the competitive landscape. Return a JSON object with:
"mainCompetitors" (array of up to 3 company names),
"competitiveAdvantage" (string, the company's edge),
"marketDynamics" (string, current dynamics in this market).`,

	model.SectionTechStack: `Assess the company's technology stack. Return a JSON object with:
"currentTechnologies" (array of up to 3 technology names),
"painPoints" (array of up to 2 short strings, likely technical pain points).`,

	model.SectionNews: `Summarize relevant industry context. Return a JSON object with:
"summary" (string, one or two sentences),
"keyPoints" (array of up to 3 short strings),
"relevantIndustryTrends" (array of up to 3 short strings).`,

	model.SectionNextSteps: `Recommend next steps for this lead. Return a JSON object with:
"recommendations" (array of up to 3 short strings),
"recommendedActions" (array of up to 2 concrete actions),
"keyQuestions" (array of up to 2 open questions to resolve),
"opportunities" (array of up to 2 opportunities to pursue).`,
}
