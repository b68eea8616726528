package report

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadreport/internal/model"
)

func TestNormalize_StringArrayPassesThrough(t *testing.T) {
	raw := map[string]any{
		"summary":   "A promising lead.",
		"keyPoints": []any{"a", "b", "c"},
	}

	c := Normalize(model.SectionOverview, raw)

	assert.False(t, c.InsufficientData)
	assert.Equal(t, "A promising lead.", c.Summary)
	assert.Equal(t, []string{"a", "b", "c"}, c.KeyPoints)
}

// The three non-array encodings of the same list all normalize to the
// identical result as a plain string array.
func TestNormalize_ArrayCoercionEquivalence(t *testing.T) {
	want := []string{"a", "b", "c"}

	shapes := map[string]any{
		"object items": []any{
			map[string]any{"name": "a"},
			map[string]any{"title": "b"},
			map[string]any{"value": "c"},
		},
		"numeric keyed map": map[string]any{"0": "a", "1": "b", "2": "c"},
		"newline delimited": "a\nb\nc",
		"bulleted lines":    "- a\n- b\n- c",
		"numbered lines":    "1. a\n2. b\n3. c",
	}

	for name, shape := range shapes {
		t.Run(name, func(t *testing.T) {
			c := Normalize(model.SectionOverview, map[string]any{"keyPoints": shape})
			assert.Equal(t, want, c.KeyPoints)
		})
	}
}

func TestNormalize_TopLevelJSONString(t *testing.T) {
	raw := `{"summary": "From a string.", "keyPoints": ["x"]}`

	c := Normalize(model.SectionOverview, raw)

	assert.Equal(t, "From a string.", c.Summary)
	assert.Equal(t, []string{"x"}, c.KeyPoints)
}

func TestNormalize_SnakeCaseFieldNames(t *testing.T) {
	raw := map[string]any{
		"key_points":      []any{"a"},
		"market_position": "leader",
	}

	c := Normalize(model.SectionCompany, raw)

	assert.Equal(t, []string{"a"}, c.KeyPoints)
	assert.Equal(t, "leader", c.MarketPosition)
}

func TestNormalize_NumericKeyedMapRejectsStrayKey(t *testing.T) {
	// One non-integer key disqualifies the whole object.
	raw := map[string]any{
		"keyPoints": map[string]any{"0": "a", "1": "b", "extra": "c"},
		"summary":   "keep",
	}

	c := Normalize(model.SectionOverview, raw)

	assert.Nil(t, c.KeyPoints)
	assert.Equal(t, "keep", c.Summary)
}

func TestNormalize_SentenceSplitting(t *testing.T) {
	raw := map[string]any{
		"challenges": "Rising costs. Hiring squeeze. Legacy tooling.",
	}

	c := Normalize(model.SectionCompany, raw)

	assert.Equal(t, []string{"Rising costs", "Hiring squeeze", "Legacy tooling"}, c.Challenges)
}

func TestNormalize_SingleSentenceBecomesOneItem(t *testing.T) {
	c := Normalize(model.SectionCompany, map[string]any{"challenges": "Only one thing"})
	assert.Equal(t, []string{"Only one thing"}, c.Challenges)
}

func TestNormalize_ListCaps(t *testing.T) {
	raw := map[string]any{
		"keyPoints": []any{"1", "2", "3", "4", "5"},
	}

	c := Normalize(model.SectionOverview, raw)

	// First N in original order, never a re-ranking.
	assert.Equal(t, []string{"1", "2", "3"}, c.KeyPoints)
}

func TestNormalize_SectionSpecificCaps(t *testing.T) {
	raw := map[string]any{
		"painPoints":          []any{"a", "b", "c"},
		"currentTechnologies": []any{"t1", "t2", "t3", "t4"},
	}

	c := Normalize(model.SectionTechStack, raw)

	assert.Equal(t, []string{"a", "b"}, c.PainPoints, "techStack caps painPoints at 2")
	assert.Equal(t, []string{"t1", "t2", "t3"}, c.CurrentTechnologies)
}

func TestNormalize_TextBudgets(t *testing.T) {
	long := strings.Repeat("x", 500)
	raw := map[string]any{
		"summary":        long,
		"marketPosition": long,
	}

	c := Normalize(model.SectionCompany, raw)

	assert.Len(t, c.Summary, 200)
	assert.Len(t, c.MarketPosition, 150)
	assert.False(t, strings.HasSuffix(c.Summary, "..."), "truncation adds no ellipsis")
}

func TestNormalize_PolicyFieldsStripped(t *testing.T) {
	raw := map[string]any{
		"summary":             "Overview text.",
		"opportunities":       []any{"o1"},
		"recommendations":     []any{"r1"},
		"recommendedActions":  []any{"a1"},
		"personalizationTips": []any{"p1"},
	}

	c := Normalize(model.SectionOverview, raw)

	assert.Nil(t, c.Opportunities)
	assert.Nil(t, c.Recommendations)
	assert.Nil(t, c.RecommendedActions)
	assert.Nil(t, c.PersonalizationTips)
	assert.Equal(t, "Overview text.", c.Summary)
}

func TestNormalize_PolicyFieldsKeptInExemptSections(t *testing.T) {
	raw := map[string]any{
		"recommendations":    []any{"r1"},
		"recommendedActions": []any{"a1"},
	}

	c := Normalize(model.SectionNextSteps, raw)

	assert.Equal(t, []string{"r1"}, c.Recommendations)
	assert.Equal(t, []string{"a1"}, c.RecommendedActions)
}

func TestNormalize_EmptyBecomesInsufficient(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":              nil,
		"empty object":     map[string]any{},
		"whitespace only":  map[string]any{"summary": "   "},
		"unparseable text": "not json at all",
		"explicit flag":    map[string]any{"insufficient_data": true, "summary": "ignored"},
	} {
		t.Run(name, func(t *testing.T) {
			c := Normalize(model.SectionOverview, raw)
			require.True(t, c.InsufficientData)
			assert.Equal(t, model.InsufficientDataMessage, c.Message)
		})
	}
}

// A normalized value re-normalized through its own JSON form is unchanged.
// This is what keeps re-processing a stored report from drifting.
func TestNormalize_Idempotent(t *testing.T) {
	raws := []map[string]any{
		{
			"summary":   strings.Repeat("long text ", 40),
			"keyPoints": []any{"- first", "2. second", "third", "fourth"},
		},
		{
			"description":    "Does things. Sells stuff. Ships code. Wins deals.",
			"marketPosition": strings.Repeat("p", 300),
			"challenges":     map[string]any{"1": "b", "0": "a"},
		},
	}

	for _, raw := range raws {
		first := Normalize(model.SectionCompany, raw)

		data, err := json.Marshal(first)
		require.NoError(t, err)
		var roundTripped map[string]any
		require.NoError(t, json.Unmarshal(data, &roundTripped))

		second := Normalize(model.SectionCompany, roundTripped)
		assert.Equal(t, first, second)
	}
}

func TestNormalize_DosDontsObject(t *testing.T) {
	raw := map[string]any{
		"dosDonts": map[string]any{
			"do":   []any{"Be direct"},
			"dont": []any{"Oversell"},
		},
	}

	c := Normalize(model.SectionInteractions, raw)

	require.NotNil(t, c.DosDonts)
	assert.Equal(t, []string{"Be direct"}, c.DosDonts.Do)
	assert.Equal(t, []string{"Oversell"}, c.DosDonts.Dont)
}

func TestNormalize_DosDontsEmbeddedJSONString(t *testing.T) {
	raw := map[string]any{
		"dosDonts": `["do use email", "don't call weekends"]`,
	}

	c := Normalize(model.SectionInteractions, raw)

	require.NotNil(t, c.DosDonts)
	assert.Equal(t, []string{"do use email"}, c.DosDonts.Do)
	assert.Equal(t, []string{"don't call weekends"}, c.DosDonts.Dont)
	assert.Empty(t, c.DosDonts.Text)
}

func TestNormalize_DosDontsFlatArrayBucketing(t *testing.T) {
	raw := map[string]any{
		"dosDonts": []any{
			"Do ask about their roadmap",
			"Always confirm the agenda",
			"Avoid pricing on the first call",
			"Never cold-transfer them",
			"Mention the case study", // no matching prefix, lands in do
		},
	}

	c := Normalize(model.SectionInteractions, raw)

	require.NotNil(t, c.DosDonts)
	assert.Equal(t, []string{
		"Do ask about their roadmap",
		"Always confirm the agenda",
		"Mention the case study",
	}, c.DosDonts.Do)
	assert.Equal(t, []string{
		"Avoid pricing on the first call",
		"Never cold-transfer them",
	}, c.DosDonts.Dont)
}

func TestNormalize_DosDontsMarkerText(t *testing.T) {
	raw := map[string]any{
		"dosDonts": "Do: keep it short\nBe on time Don't: read slides\nRamble",
	}

	c := Normalize(model.SectionInteractions, raw)

	require.NotNil(t, c.DosDonts)
	assert.NotEmpty(t, c.DosDonts.Do)
	assert.NotEmpty(t, c.DosDonts.Dont)
}

func TestNormalize_DosDontsPlainTextKept(t *testing.T) {
	raw := map[string]any{
		"dosDonts": "Keep communication concise and respectful.",
	}

	c := Normalize(model.SectionInteractions, raw)

	require.NotNil(t, c.DosDonts)
	assert.Equal(t, "Keep communication concise and respectful.", c.DosDonts.Text)
	assert.Empty(t, c.DosDonts.Do)
}

func TestNormalize_TextFieldSentAsList(t *testing.T) {
	raw := map[string]any{
		"suggestedAgenda": []any{"Intros", "Demo", "Next steps"},
	}

	c := Normalize(model.SectionMeeting, raw)

	assert.Equal(t, "Intros Demo Next steps", c.SuggestedAgenda)
}

func TestStripMarker(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"- item", "item"},
		{"* item", "item"},
		{"• item", "item"},
		{"1. item", "item"},
		{"12) item", "item"},
		{"plain prose", "plain prose"},
		{"3.5 percent growth", "3.5 percent growth"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripMarker(tt.in), tt.in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "abcde", truncate("abcdefgh", 5))
	assert.Equal(t, "abcdefgh", truncate("abcdefgh", 0), "zero budget means unbounded")

	// Rune-safe: multi-byte characters are never split.
	got := truncate("ééééé", 3)
	assert.Equal(t, "ééé", got)
}

func TestListCap(t *testing.T) {
	assert.Equal(t, 3, listCap(model.SectionOverview, "keyPoints"))
	assert.Equal(t, 2, listCap(model.SectionTechStack, "painPoints"))
	assert.Equal(t, 3, listCap(model.SectionCompany, "painPoints"))
	assert.Equal(t, 2, listCap(model.SectionNextSteps, "recommendedActions"))
	assert.Equal(t, 0, listCap(model.SectionOverview, "unknownField"))
}
