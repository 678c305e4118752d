package dunning

import (
	"fmt"
	"html"
	"strings"
)

// Tone sets the voice of a dunning email.
type Tone string

const (
	ToneGentleReminder Tone = "gentle_reminder"
	ToneHelpOffer      Tone = "help_offer"
	ToneUrgency        Tone = "urgency"
	ToneFinalWarning   Tone = "final_warning"
)

func (t Tone) IsValid() bool {
	switch t {
	case ToneGentleReminder, ToneHelpOffer, ToneUrgency, ToneFinalWarning:
		return true
	}
	return false
}

// DefaultToneSequence is used when a project has no dunning config.
func DefaultToneSequence() []Tone {
	return []Tone{ToneGentleReminder, ToneHelpOffer, ToneUrgency, ToneFinalWarning}
}

// ToneFor picks the tone for the next email after retryCount sends.
// Counts past the end of the sequence reuse its last element.
func ToneFor(sequence []Tone, retryCount int) Tone {
	if len(sequence) == 0 {
		sequence = DefaultToneSequence()
	}
	idx := retryCount
	if idx < 0 {
		idx = 0
	}
	if idx > len(sequence)-1 {
		idx = len(sequence) - 1
	}
	return sequence[idx]
}

// EmailData is the input to RenderEmail.
type EmailData struct {
	CustomerName  string
	AmountCents   int64
	Currency      string
	FailureReason string
	FromName      string
	RetryNumber   int
	MaxRetries    int
}

// RenderEmail builds the subject and HTML body for a dunning email of the given tone.
// Subjects are fixed text; values placed in the body are HTML-escaped.
func RenderEmail(tone Tone, d EmailData) (subject, body string) {
	name := strings.TrimSpace(d.CustomerName)
	if name == "" {
		name = "there"
	}
	from := strings.TrimSpace(d.FromName)
	if from == "" {
		from = "The team"
	}
	name, from = html.EscapeString(name), html.EscapeString(from)
	amount := html.EscapeString(FormatAmount(d.AmountCents, d.Currency))

	var lead string
	switch tone {
	case ToneGentleReminder:
		subject = "Your payment didn't go through"
		lead = fmt.Sprintf("We tried to charge %s for your subscription but the payment didn't go through. It happens, usually an expired card. Updating your payment details takes a minute.", amount)
	case ToneHelpOffer:
		subject = "Need a hand updating your payment?"
		lead = fmt.Sprintf("Your payment of %s is still outstanding. If something is getting in the way, just reply to this email and we'll help you sort it out.", amount)
	case ToneUrgency:
		subject = "Action needed: your subscription is at risk"
		lead = fmt.Sprintf("We still couldn't collect %s. Please update your payment details soon so your account keeps working without interruption.", amount)
	case ToneFinalWarning:
		subject = "Final notice before your subscription is cancelled"
		lead = fmt.Sprintf("This is our last attempt to collect %s. If the payment isn't updated, your subscription will be cancelled and access will end.", amount)
	default:
		subject = "Your payment didn't go through"
		lead = fmt.Sprintf("We couldn't collect %s for your subscription.", amount)
	}

	var reason string
	if d.FailureReason != "" {
		reason = fmt.Sprintf("<p style=\"color: #666;\">Reason reported by the bank: %s</p>", html.EscapeString(d.FailureReason))
	}

	body = fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<p>Hi %s,</p>
			<p>%s</p>
			%s
			<p style="color: #999; font-size: 12px;">Reminder %d of %d</p>
			<p>%s</p>
		</div>
	`, name, lead, reason, d.RetryNumber, d.MaxRetries, from)

	return subject, body
}

// FormatAmount renders minor units as "12.34 USD".
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, strings.ToUpper(currency))
}
