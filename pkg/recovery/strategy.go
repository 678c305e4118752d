package recovery

// Strategy is a named approach for winning a customer back.
type Strategy string

const (
	StrategyDiscount        Strategy = "discount"
	StrategyUnusedFeature   Strategy = "unused_feature"
	StrategyValueRecap      Strategy = "value_recap"
	StrategySocialProof     Strategy = "social_proof"
	StrategyPainPointFix    Strategy = "pain_point_fix"
	StrategyFounderEmail    Strategy = "founder_email"
	StrategyPauseOption     Strategy = "pause_option"
	StrategyOnboardingHelp  Strategy = "onboarding_help"
	StrategyFeedbackRequest Strategy = "feedback_request"
)

// VariantCount is the size of a full AI generation batch.
const VariantCount = 9

// AllStrategies returns the full strategy set in generation order.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyDiscount,
		StrategyUnusedFeature,
		StrategyValueRecap,
		StrategySocialProof,
		StrategyPainPointFix,
		StrategyFounderEmail,
		StrategyPauseOption,
		StrategyOnboardingHelp,
		StrategyFeedbackRequest,
	}
}

// StrategyFor maps a cancel reason to its primary recovery strategy.
func StrategyFor(reason CancelReason) Strategy {
	switch reason {
	case ReasonTooExpensive:
		return StrategyDiscount
	case ReasonMissingFeatures:
		return StrategyUnusedFeature
	case ReasonNotUsingEnough:
		return StrategyValueRecap
	case ReasonSwitchingCompetitor:
		return StrategySocialProof
	case ReasonTechnicalIssues:
		return StrategyPainPointFix
	case ReasonPoorSupport:
		return StrategyFounderEmail
	case ReasonDontNeedAnymore:
		return StrategyPauseOption
	case ReasonTooComplicated:
		return StrategyOnboardingHelp
	case ReasonOther:
		return StrategyFeedbackRequest
	}
	return StrategyFeedbackRequest
}

// SelectStrategy resolves the primary strategy for a stored cancel reason,
// including any ": free text" suffix.
func SelectStrategy(rawReason string) Strategy {
	reason, _ := ParseCancelReason(rawReason)
	return StrategyFor(reason)
}

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyDiscount, StrategyUnusedFeature, StrategyValueRecap,
		StrategySocialProof, StrategyPainPointFix, StrategyFounderEmail,
		StrategyPauseOption, StrategyOnboardingHelp, StrategyFeedbackRequest:
		return true
	}
	return false
}

func (s Strategy) Label() string {
	switch s {
	case StrategyDiscount:
		return "Discount offer"
	case StrategyUnusedFeature:
		return "Unused feature highlight"
	case StrategyValueRecap:
		return "Value recap"
	case StrategySocialProof:
		return "Social proof"
	case StrategyPainPointFix:
		return "Pain point fix"
	case StrategyFounderEmail:
		return "Personal founder email"
	case StrategyPauseOption:
		return "Pause instead of cancel"
	case StrategyOnboardingHelp:
		return "Guided onboarding"
	case StrategyFeedbackRequest:
		return "Feedback request"
	}
	return string(s)
}

// Brief is the instruction handed to the copywriter (human or model) for a strategy.
func (s Strategy) Brief() string {
	switch s {
	case StrategyDiscount:
		return "Offer a time-limited discount on their plan and make the price objection go away."
	case StrategyUnusedFeature:
		return "Point out features they never tried that solve what they said was missing."
	case StrategyValueRecap:
		return "Recap the concrete value they got so far and how little effort it takes to get more."
	case StrategySocialProof:
		return "Show how similar customers stayed and what they achieved, without attacking competitors."
	case StrategyPainPointFix:
		return "Acknowledge the technical problems, explain what was fixed, and offer direct help."
	case StrategyFounderEmail:
		return "Write a short, personal note from the founder apologising for the support experience."
	case StrategyPauseOption:
		return "Offer to pause the subscription instead of cancelling so their data stays intact."
	case StrategyOnboardingHelp:
		return "Offer a free guided onboarding session to make the product simple for them."
	case StrategyFeedbackRequest:
		return "Ask for honest feedback on why they left and invite them to reply directly."
	}
	return ""
}
