package model

import (
	"encoding/json"
	"strings"
)

// Section names. Every report carries exactly these eight under ai_content.
const (
	SectionOverview     = "overview"
	SectionCompany      = "company"
	SectionMeeting      = "meeting"
	SectionInteractions = "interactions"
	SectionCompetitors  = "competitors"
	SectionTechStack    = "techStack"
	SectionNews         = "news"
	SectionNextSteps    = "nextSteps"
)

// SectionNames lists the eight section keys in presentation order.
var SectionNames = []string{
	SectionOverview,
	SectionCompany,
	SectionMeeting,
	SectionInteractions,
	SectionCompetitors,
	SectionTechStack,
	SectionNews,
	SectionNextSteps,
}

// InsufficientDataMessage is the stock body for a section the model could
// not usefully populate.
const InsufficientDataMessage = "Insufficient data to generate insights for this section."

// SectionContent is the normalized payload of a single insight section.
// Which fields are populated depends on the section; all are optional.
// A section that came back empty is represented with InsufficientData set
// and Message carrying the stock explanation.
type SectionContent struct {
	InsufficientData bool   `json:"insufficientData,omitempty"`
	Message          string `json:"message,omitempty"`

	Summary     string   `json:"summary,omitempty"`
	KeyPoints   []string `json:"keyPoints,omitempty"`
	Description string   `json:"description,omitempty"`

	MarketPosition string   `json:"marketPosition,omitempty"`
	Challenges     []string `json:"challenges,omitempty"`
	Opportunities  []string `json:"opportunities,omitempty"`

	Competitors          []string `json:"competitors,omitempty"`
	MainCompetitors      []string `json:"mainCompetitors,omitempty"`
	CompetitiveAdvantage string   `json:"competitiveAdvantage,omitempty"`
	MarketDynamics       string   `json:"marketDynamics,omitempty"`

	CurrentTechnologies []string `json:"currentTechnologies,omitempty"`
	PainPoints          []string `json:"painPoints,omitempty"`

	Recommendations        []string `json:"recommendations,omitempty"`
	RecommendedActions     []string `json:"recommendedActions,omitempty"`
	RelevantIndustryTrends []string `json:"relevantIndustryTrends,omitempty"`

	CommunicationPreferences string    `json:"communicationPreferences,omitempty"`
	PersonalizationTips      []string  `json:"personalizationTips,omitempty"`
	DosDonts                 *DosDonts `json:"dosDonts,omitempty"`

	SuggestedAgenda string   `json:"suggestedAgenda,omitempty"`
	KeyQuestions    []string `json:"keyQuestions,omitempty"`
	PreparationTips string   `json:"preparationTips,omitempty"`
}

// IsEmpty reports whether no content field carries anything usable.
func (c *SectionContent) IsEmpty() bool {
	if c == nil {
		return true
	}
	strs := []string{
		c.Summary, c.Description, c.MarketPosition, c.CompetitiveAdvantage,
		c.MarketDynamics, c.CommunicationPreferences, c.SuggestedAgenda,
		c.PreparationTips,
	}
	for _, s := range strs {
		if strings.TrimSpace(s) != "" {
			return false
		}
	}
	lists := [][]string{
		c.KeyPoints, c.Challenges, c.Opportunities, c.Competitors,
		c.MainCompetitors, c.CurrentTechnologies, c.PainPoints,
		c.Recommendations, c.RecommendedActions, c.RelevantIndustryTrends,
		c.PersonalizationTips, c.KeyQuestions,
	}
	for _, l := range lists {
		if len(l) > 0 {
			return false
		}
	}
	if !c.DosDonts.IsEmpty() {
		return false
	}
	return true
}

// InsufficientSection returns the canonical placeholder content for a
// section with nothing to show.
func InsufficientSection() SectionContent {
	return SectionContent{
		InsufficientData: true,
		Message:          InsufficientDataMessage,
	}
}

// DosDonts holds meeting etiquette guidance. Models return it either as a
// {"do": [...], "dont": [...]} object or as a plain string, sometimes a
// string that itself contains embedded JSON. Normalization resolves the
// embedded-JSON case; this type round-trips whichever shape it holds.
type DosDonts struct {
	Do   []string `json:"-"`
	Dont []string `json:"-"`
	Text string   `json:"-"`
}

// IsEmpty reports whether the value carries no guidance in either shape.
func (d *DosDonts) IsEmpty() bool {
	if d == nil {
		return true
	}
	return len(d.Do) == 0 && len(d.Dont) == 0 && strings.TrimSpace(d.Text) == ""
}

type dosDontsObject struct {
	Do   []string `json:"do,omitempty"`
	Dont []string `json:"dont,omitempty"`
}

// MarshalJSON emits the structured object when Do/Dont are populated,
// otherwise the raw string form.
func (d DosDonts) MarshalJSON() ([]byte, error) {
	if len(d.Do) > 0 || len(d.Dont) > 0 {
		return json.Marshal(dosDontsObject{Do: d.Do, Dont: d.Dont})
	}
	return json.Marshal(d.Text)
}

// UnmarshalJSON accepts both shapes. It does not attempt to parse JSON
// embedded inside a string value; that repair belongs to normalization so
// that stored content re-read from the database is already stable.
func (d *DosDonts) UnmarshalJSON(data []byte) error {
	var obj dosDontsObject
	if err := json.Unmarshal(data, &obj); err == nil {
		*d = DosDonts{Do: obj.Do, Dont: obj.Dont}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*d = DosDonts{Text: s}
	return nil
}
