package report

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/leadreport/internal/model"
)

// Normalize converts an untrusted model response into canonical section
// content. Pure and deterministic; it never returns an error. Malformed or
// empty input degrades to the insufficient-data variant.
//
// Already-canonical content is a fixed point: re-normalizing a stored
// section yields the identical value, so there is no truncation drift when
// content is read back and written again.
func Normalize(section string, raw any) model.SectionContent {
	obj := asObject(raw)
	if obj == nil {
		return model.InsufficientSection()
	}

	if truthy(field(obj, "insufficientData", "insufficient_data")) {
		return model.InsufficientSection()
	}

	c := model.SectionContent{
		Summary:                  text(obj, "summary"),
		KeyPoints:                list(obj, "keyPoints", "key_points"),
		Description:              text(obj, "description"),
		MarketPosition:           text(obj, "marketPosition", "market_position"),
		Challenges:               list(obj, "challenges"),
		Opportunities:            list(obj, "opportunities"),
		Competitors:              list(obj, "competitors"),
		MainCompetitors:          list(obj, "mainCompetitors", "main_competitors"),
		CompetitiveAdvantage:     text(obj, "competitiveAdvantage", "competitive_advantage"),
		MarketDynamics:           text(obj, "marketDynamics", "market_dynamics"),
		CurrentTechnologies:      list(obj, "currentTechnologies", "current_technologies"),
		PainPoints:               list(obj, "painPoints", "pain_points"),
		Recommendations:          list(obj, "recommendations"),
		RecommendedActions:       list(obj, "recommendedActions", "recommended_actions"),
		RelevantIndustryTrends:   list(obj, "relevantIndustryTrends", "relevant_industry_trends"),
		CommunicationPreferences: text(obj, "communicationPreferences", "communication_preferences"),
		PersonalizationTips:      list(obj, "personalizationTips", "personalization_tips"),
		DosDonts:                 dosDonts(field(obj, "dosDonts", "dos_donts", "dosAndDonts")),
		SuggestedAgenda:          text(obj, "suggestedAgenda", "suggested_agenda"),
		KeyQuestions:             list(obj, "keyQuestions", "key_questions"),
		PreparationTips:          text(obj, "preparationTips", "preparation_tips"),
	}

	if !policyExemptSections[section] {
		stripPolicyFields(&c)
	}
	applyBudgets(section, &c)

	if c.IsEmpty() {
		return model.InsufficientSection()
	}
	return c
}

// asObject resolves the three tolerated top-level shapes to a JSON object:
// an already-parsed object, a JSON string containing an object, or nil.
func asObject(raw any) map[string]any {
	switch v := raw.(type) {
	case map[string]any:
		return v
	case string:
		var obj map[string]any
		if err := json.Unmarshal([]byte(strings.TrimSpace(v)), &obj); err == nil {
			return obj
		}
		return nil
	default:
		return nil
	}
}

// field returns the first present key from the candidate names.
func field(obj map[string]any, names ...string) any {
	for _, n := range names {
		if v, ok := obj[n]; ok {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func text(obj map[string]any, names ...string) string {
	v := field(obj, names...)
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case []any:
		// A text field sent as a list collapses to its joined items.
		items := coerceList(v)
		return strings.Join(items, " ")
	default:
		return ""
	}
}

func list(obj map[string]any, names ...string) []string {
	return coerceList(field(obj, names...))
}

// coerceList resolves a conceptually-array value from any of the shapes the
// upstream has been observed to produce, in fixed priority order: array of
// strings, array of objects, numeric-keyed map, delimited string. A plain
// sentence becomes a one-item list.
func coerceList(v any) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []any:
		var items []string
		for _, item := range val {
			if s := itemString(item); s != "" {
				items = append(items, s)
			}
		}
		return items
	case []string:
		var items []string
		for _, s := range val {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		return items
	case map[string]any:
		return numericKeyedList(val)
	case string:
		return splitDelimited(val)
	default:
		return nil
	}
}

// itemString extracts the display string from one list element, which may
// itself be a string or an object keyed by name/title/value/text.
func itemString(item any) string {
	switch v := item.(type) {
	case string:
		return stripMarker(v)
	case map[string]any:
		for _, key := range []string{"name", "title", "value", "text"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
		return ""
	default:
		return ""
	}
}

// numericKeyedList treats {"0": "a", "1": "b"} as the array it encodes.
// Every key must parse as a small non-negative integer; one stray key
// disqualifies the whole object.
func numericKeyedList(m map[string]any) []string {
	if len(m) == 0 {
		return nil
	}
	type entry struct {
		idx int
		val string
	}
	entries := make([]entry, 0, len(m))
	for k, v := range m {
		idx, err := strconv.Atoi(k)
		if err != nil || idx < 0 || idx >= 100 {
			return nil
		}
		entries = append(entries, entry{idx: idx, val: itemString(v)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	var items []string
	for _, e := range entries {
		if e.val != "" {
			items = append(items, e.val)
		}
	}
	return items
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]\s+|\d+[.)]\s+)`)

// stripMarker removes a leading bullet or numbered marker. Prose keeps its
// leading punctuation untouched.
func stripMarker(s string) string {
	return strings.TrimSpace(listMarker.ReplaceAllString(s, ""))
}

// splitDelimited turns a string that encodes a list into its items. Lines
// win over sentences; a plain single sentence is a one-item list.
func splitDelimited(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	lines := strings.Split(s, "\n")
	if len(lines) > 1 {
		var items []string
		for _, line := range lines {
			if item := stripMarker(line); item != "" {
				items = append(items, item)
			}
		}
		return items
	}

	// Single line: a bulleted or numbered run, or period-separated sentences.
	if parts := splitInlineMarkers(s); len(parts) > 1 {
		return parts
	}
	if parts := splitSentences(s); len(parts) > 1 {
		return parts
	}
	if item := stripMarker(s); item != "" {
		return []string{item}
	}
	return nil
}

var inlineMarker = regexp.MustCompile(`\s+(?:[-*•]|\d+[.)])\s+`)

func splitInlineMarkers(s string) []string {
	if !listMarker.MatchString(s) && !inlineMarker.MatchString(s) {
		return nil
	}
	parts := inlineMarker.Split(s, -1)
	var items []string
	for _, p := range parts {
		if item := stripMarker(p); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func splitSentences(s string) []string {
	if !strings.Contains(s, ". ") {
		return nil
	}
	parts := strings.Split(s, ". ")
	var items []string
	for _, p := range parts {
		p = strings.TrimSuffix(strings.TrimSpace(p), ".")
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

// dosDonts resolves the do/don't field from any of its observed shapes:
// a structured {do, dont} object, a flat array bucketed by leading-phrase
// heuristics, a JSON array embedded inside a string, or free text with
// explicit do:/don't: markers.
func dosDonts(v any) *model.DosDonts {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]any:
		d := &model.DosDonts{
			Do:   coerceList(field(val, "do", "dos")),
			Dont: coerceList(field(val, "dont", "donts", "don't")),
		}
		if d.IsEmpty() {
			return nil
		}
		return d
	case []any:
		return bucketDosDonts(coerceList(val))
	case string:
		return dosDontsFromString(val)
	default:
		return nil
	}
}

func dosDontsFromString(s string) *model.DosDonts {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	// Nested parse first: the model often JSON-encodes the array into a
	// string field.
	var arr []any
	if err := json.Unmarshal([]byte(s), &arr); err == nil {
		return bucketDosDonts(coerceList(arr))
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err == nil {
		return dosDonts(obj)
	}

	// Free text with explicit do:/don't: markers.
	if d := splitDoDontMarkers(s); d != nil {
		return d
	}

	return &model.DosDonts{Text: s}
}

var doPrefixes = []string{"do ", "always ", "use "}
var dontPrefixes = []string{"don't ", "dont ", "avoid ", "never "}

// bucketDosDonts classifies flat statements by leading phrase. The check is
// case-insensitive and prefix-only; unmatched items land in the do bucket.
func bucketDosDonts(items []string) *model.DosDonts {
	if len(items) == 0 {
		return nil
	}
	d := &model.DosDonts{}
	for _, item := range items {
		lower := strings.ToLower(item)
		if hasAnyPrefix(lower, dontPrefixes) {
			d.Dont = append(d.Dont, item)
		} else {
			d.Do = append(d.Do, item)
		}
	}
	return d
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

var doDontMarkers = regexp.MustCompile(`(?is)\bdo:\s*(.+?)\s*\bdon'?t:\s*(.+)$`)

func splitDoDontMarkers(s string) *model.DosDonts {
	m := doDontMarkers.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return &model.DosDonts{
		Do:   splitDelimited(m[1]),
		Dont: splitDelimited(m[2]),
	}
}

// stripPolicyFields clears recommendation-flavored fields for sections that
// must not carry them.
func stripPolicyFields(c *model.SectionContent) {
	c.Opportunities = nil
	c.Recommendations = nil
	c.RecommendedActions = nil
	c.PersonalizationTips = nil
}

// applyBudgets enforces character budgets and list caps after coercion,
// before storage. Truncation keeps the first N in original order.
func applyBudgets(section string, c *model.SectionContent) {
	c.Summary = truncate(c.Summary, textBudgets["summary"])
	c.Description = truncate(c.Description, textBudgets["description"])
	c.MarketPosition = truncate(c.MarketPosition, textBudgets["marketPosition"])
	c.CompetitiveAdvantage = truncate(c.CompetitiveAdvantage, textBudgets["competitiveAdvantage"])
	c.MarketDynamics = truncate(c.MarketDynamics, textBudgets["marketDynamics"])
	c.CommunicationPreferences = truncate(c.CommunicationPreferences, textBudgets["communicationPreferences"])
	c.SuggestedAgenda = truncate(c.SuggestedAgenda, textBudgets["suggestedAgenda"])
	if c.DosDonts != nil && c.DosDonts.Text != "" {
		c.DosDonts.Text = truncate(c.DosDonts.Text, textBudgets["dosDonts"])
	}

	c.KeyPoints = capList(c.KeyPoints, listCap(section, "keyPoints"))
	c.Challenges = capList(c.Challenges, listCap(section, "challenges"))
	c.Opportunities = capList(c.Opportunities, listCap(section, "opportunities"))
	c.Competitors = capList(c.Competitors, listCap(section, "competitors"))
	c.MainCompetitors = capList(c.MainCompetitors, listCap(section, "mainCompetitors"))
	c.CurrentTechnologies = capList(c.CurrentTechnologies, listCap(section, "currentTechnologies"))
	c.PainPoints = capList(c.PainPoints, listCap(section, "painPoints"))
	c.Recommendations = capList(c.Recommendations, listCap(section, "recommendations"))
	c.RecommendedActions = capList(c.RecommendedActions, listCap(section, "recommendedActions"))
	c.RelevantIndustryTrends = capList(c.RelevantIndustryTrends, listCap(section, "relevantIndustryTrends"))
	c.PersonalizationTips = capList(c.PersonalizationTips, listCap(section, "personalizationTips"))
	c.KeyQuestions = capList(c.KeyQuestions, listCap(section, "keyQuestions"))
}

func truncate(s string, budget int) string {
	if budget <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return strings.TrimSpace(string(runes[:budget]))
}

func capList(items []string, n int) []string {
	if n <= 0 || len(items) <= n {
		return items
	}
	return items[:n]
}
