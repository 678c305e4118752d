package recovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrategyFor(t *testing.T) {
	tests := []struct {
		reason CancelReason
		want   Strategy
	}{
		{ReasonTooExpensive, StrategyDiscount},
		{ReasonMissingFeatures, StrategyUnusedFeature},
		{ReasonNotUsingEnough, StrategyValueRecap},
		{ReasonSwitchingCompetitor, StrategySocialProof},
		{ReasonTechnicalIssues, StrategyPainPointFix},
		{ReasonPoorSupport, StrategyFounderEmail},
		{ReasonDontNeedAnymore, StrategyPauseOption},
		{ReasonTooComplicated, StrategyOnboardingHelp},
		{ReasonOther, StrategyFeedbackRequest},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			assert.Equal(t, tt.want, StrategyFor(tt.reason))
		})
	}
}

func TestNamedReasonsMapToDistinctStrategies(t *testing.T) {
	seen := map[Strategy]CancelReason{}
	for _, reason := range AllReasons() {
		if reason == ReasonOther {
			continue
		}
		s := StrategyFor(reason)
		prev, dup := seen[s]
		assert.False(t, dup, "%s and %s both map to %s", prev, reason, s)
		seen[s] = reason
	}
	assert.Len(t, seen, 8)
}

func TestAllStrategiesCoverEveryReason(t *testing.T) {
	all := AllStrategies()
	assert.Len(t, all, VariantCount)
	for _, reason := range AllReasons() {
		assert.Contains(t, all, StrategyFor(reason))
	}
	for _, s := range all {
		assert.True(t, s.IsValid())
		assert.NotEmpty(t, s.Brief())
	}
}

func TestParseCancelReason(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantBase CancelReason
		wantText string
	}{
		{"plain", "too_expensive", ReasonTooExpensive, ""},
		{"with free text", "missing_features: no API access", ReasonMissingFeatures, "no API access"},
		{"uppercase base", "POOR_SUPPORT", ReasonPoorSupport, ""},
		{"unknown base", "moved_to_mars: too far", ReasonOther, "too far"},
		{"empty", "", ReasonOther, ""},
		{"text containing separator", "other: a: b", ReasonOther, "a: b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, text := ParseCancelReason(tt.raw)
			assert.Equal(t, tt.wantBase, base)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestSelectStrategyUsesBaseReason(t *testing.T) {
	assert.Equal(t, StrategyDiscount, SelectStrategy("too_expensive: budget cuts"))
	assert.Equal(t, StrategyFeedbackRequest, SelectStrategy("other"))
	assert.Equal(t, StrategyFeedbackRequest, SelectStrategy("not_a_reason"))
}

func TestFormatCancelReason(t *testing.T) {
	assert.Equal(t, "too_expensive", FormatCancelReason(ReasonTooExpensive, "  "))
	assert.Equal(t, "other: moving country", FormatCancelReason(ReasonOther, "moving country"))
}

func TestRenderTemplate(t *testing.T) {
	tpl := "Hi {{customer_name}}, your {{plan_name}} plan"

	t.Run("all values present", func(t *testing.T) {
		got := RenderTemplate(tpl, TemplateData{CustomerName: "Jane", PlanName: "Pro"})
		assert.Equal(t, "Hi Jane, your Pro plan", got)
	})

	t.Run("missing customer name", func(t *testing.T) {
		got := RenderTemplate(tpl, TemplateData{PlanName: "Pro"})
		assert.Equal(t, "Hi there, your Pro plan", got)
	})

	t.Run("missing plan name", func(t *testing.T) {
		got := RenderTemplate("Your {{plan_name}}", TemplateData{})
		assert.Equal(t, "Your your plan", got)
	})

	t.Run("email and reason label", func(t *testing.T) {
		got := RenderTemplate("{{customer_email}} left: {{cancel_reason}} {{unknown}}", TemplateData{
			CustomerEmail: "jane@example.com",
			CancelReason:  "too_expensive: budget",
		})
		assert.Equal(t, "jane@example.com left: Too expensive {{unknown}}", got)
	})
}

func TestRenderHTML(t *testing.T) {
	data := TemplateData{
		CustomerName:  "<b>Jane</b>",
		CustomerEmail: `x"@example.com`,
		PlanName:      "Pro & Team",
	}

	tests := []struct {
		name   string
		render func(string, TemplateData) string
		want   string
	}{
		{"html body escapes values", RenderHTML, "<p>Hi &lt;b&gt;Jane&lt;/b&gt; (x&#34;@example.com), Pro &amp; Team</p>"},
		{"plain subject keeps values", RenderTemplate, `<p>Hi <b>Jane</b> (x"@example.com), Pro & Team</p>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.render("<p>Hi {{customer_name}} ({{customer_email}}), {{plan_name}}</p>", data)
			assert.Equal(t, tt.want, got)
		})
	}
}
