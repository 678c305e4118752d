package recovery

import (
	"html"
	"strings"
)

// TemplateData carries the values substituted into a recovery template.
type TemplateData struct {
	CustomerName  string
	CustomerEmail string
	PlanName      string
	CancelReason  string // stored reason, optionally with ": free text"
}

const (
	fallbackCustomerName = "there"
	fallbackPlanName     = "your plan"
)

// RenderTemplate substitutes the supported {{placeholders}} as plain text,
// for subjects. Unknown placeholders are left untouched.
func RenderTemplate(tpl string, data TemplateData) string {
	return render(tpl, data, func(s string) string { return s })
}

// RenderHTML is RenderTemplate for HTML bodies: substituted values are escaped,
// the template itself is not.
func RenderHTML(tpl string, data TemplateData) string {
	return render(tpl, data, html.EscapeString)
}

func render(tpl string, data TemplateData, escape func(string) string) string {
	name := strings.TrimSpace(data.CustomerName)
	if name == "" {
		name = fallbackCustomerName
	}
	plan := strings.TrimSpace(data.PlanName)
	if plan == "" {
		plan = fallbackPlanName
	}
	reason, _ := ParseCancelReason(data.CancelReason)

	r := strings.NewReplacer(
		"{{customer_name}}", escape(name),
		"{{customer_email}}", escape(data.CustomerEmail),
		"{{plan_name}}", escape(plan),
		"{{cancel_reason}}", escape(reason.Label()),
	)
	return r.Replace(tpl)
}
