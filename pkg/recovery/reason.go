package recovery

import "strings"

// CancelReason is the enumerated base reason a customer gave when cancelling.
type CancelReason string

const (
	ReasonTooExpensive        CancelReason = "too_expensive"
	ReasonMissingFeatures     CancelReason = "missing_features"
	ReasonNotUsingEnough      CancelReason = "not_using_enough"
	ReasonSwitchingCompetitor CancelReason = "switching_competitor"
	ReasonTechnicalIssues     CancelReason = "technical_issues"
	ReasonPoorSupport         CancelReason = "poor_support"
	ReasonDontNeedAnymore     CancelReason = "dont_need_anymore"
	ReasonTooComplicated      CancelReason = "too_complicated"
	ReasonOther               CancelReason = "other"
)

// reasonSeparator splits "too_expensive: found something cheaper" into base and free text.
const reasonSeparator = ": "

// AllReasons returns every cancel reason, named reasons first and "other" last.
func AllReasons() []CancelReason {
	return []CancelReason{
		ReasonTooExpensive,
		ReasonMissingFeatures,
		ReasonNotUsingEnough,
		ReasonSwitchingCompetitor,
		ReasonTechnicalIssues,
		ReasonPoorSupport,
		ReasonDontNeedAnymore,
		ReasonTooComplicated,
		ReasonOther,
	}
}

// IsValid reports whether r is one of the enumerated reasons.
func (r CancelReason) IsValid() bool {
	switch r {
	case ReasonTooExpensive, ReasonMissingFeatures, ReasonNotUsingEnough,
		ReasonSwitchingCompetitor, ReasonTechnicalIssues, ReasonPoorSupport,
		ReasonDontNeedAnymore, ReasonTooComplicated, ReasonOther:
		return true
	}
	return false
}

// Label is the human readable form used in emails and template rendering.
func (r CancelReason) Label() string {
	switch r {
	case ReasonTooExpensive:
		return "Too expensive"
	case ReasonMissingFeatures:
		return "Missing features"
	case ReasonNotUsingEnough:
		return "Not using it enough"
	case ReasonSwitchingCompetitor:
		return "Switching to a competitor"
	case ReasonTechnicalIssues:
		return "Technical issues"
	case ReasonPoorSupport:
		return "Poor support"
	case ReasonDontNeedAnymore:
		return "Don't need it anymore"
	case ReasonTooComplicated:
		return "Too complicated"
	case ReasonOther:
		return "Other"
	}
	return "Other"
}

// BaseReason returns the raw base reason string, i.e. everything before the
// first ": " separator, trimmed and lower-cased. It does not validate.
func BaseReason(raw string) string {
	base := raw
	if idx := strings.Index(raw, reasonSeparator); idx >= 0 {
		base = raw[:idx]
	}
	return strings.ToLower(strings.TrimSpace(base))
}

// ParseCancelReason splits a stored cancel reason into its enumerated base and
// optional free text. Unknown or empty bases collapse to ReasonOther.
func ParseCancelReason(raw string) (CancelReason, string) {
	text := ""
	if idx := strings.Index(raw, reasonSeparator); idx >= 0 {
		text = strings.TrimSpace(raw[idx+len(reasonSeparator):])
	}

	reason := CancelReason(BaseReason(raw))
	if !reason.IsValid() {
		return ReasonOther, text
	}
	return reason, text
}

// FormatCancelReason joins a base reason and free text the way it is stored.
func FormatCancelReason(reason CancelReason, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return string(reason)
	}
	return string(reason) + reasonSeparator + text
}
