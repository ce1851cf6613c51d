package newsletter

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"sort"
	texttemplate "text/template"
	"time"

	"github.com/aibubble/analytics/backend/internal/index"
)

// DailyEmailData feeds the daily newsletter templates
type DailyEmailData struct {
	Date           string
	Score          float64
	RiskLevel      string
	RiskColor      string
	RiskHex        string
	Description    string
	TrendDirection string
	TrendChange    float64
	TopFactors     []factorRow
	Metrics        []metricRow
	UnsubscribeURL string
}

type factorRow struct {
	Name  string
	Value float64
}

type metricRow struct {
	Name         string
	Value        float64
	Weight       float64
	Contribution float64
}

// UnsubscribeTag marks where each recipient's unsubscribe link goes in
// the shared daily body. The mail provider replaces it per recipient
// via personalization substitutions.
const UnsubscribeTag = "--unsubscribe_url--"

// DailySubject builds the subject line for a day's briefing
func DailySubject(score float64, level index.RiskLevel) string {
	return fmt.Sprintf("AI Bubble Index: %.0f/100 (%s) - Daily Briefing", score, level)
}

// BuildDailyEmailData flattens a calculation result for the templates
func BuildDailyEmailData(result *index.Result, unsubscribeURL string) DailyEmailData {
	data := DailyEmailData{
		Date:           result.Timestamp.Format("January 2, 2006"),
		Score:          result.Score,
		RiskLevel:      string(result.RiskLevel),
		RiskColor:      string(result.RiskColor),
		RiskHex:        result.RiskColor.Hex(),
		Description:    result.RiskDescription,
		TrendDirection: result.Trend.Direction,
		TrendChange:    result.Trend.Change,
		UnsubscribeURL: unsubscribeURL,
	}

	for _, f := range index.TopRiskFactors(result, 3) {
		data.TopFactors = append(data.TopFactors, factorRow{
			Name:  index.DisplayName(f.Key),
			Value: f.Value,
		})
	}

	keys := make([]index.Key, 0, len(result.Breakdown))
	for k := range result.Breakdown {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return result.Breakdown[keys[i]].Contribution > result.Breakdown[keys[j]].Contribution
	})
	for _, k := range keys {
		c := result.Breakdown[k]
		data.Metrics = append(data.Metrics, metricRow{
			Name:         index.DisplayName(k),
			Value:        c.Value,
			Weight:       c.Weight,
			Contribution: c.Contribution,
		})
	}

	return data
}

// RenderDaily renders the daily newsletter body in both formats
func RenderDaily(data DailyEmailData) (html, text string, err error) {
	html, err = execHTML(dailyHTML, data)
	if err != nil {
		return "", "", fmt.Errorf("render daily html: %w", err)
	}
	text, err = execText(dailyText, data)
	if err != nil {
		return "", "", fmt.Errorf("render daily text: %w", err)
	}
	return html, text, nil
}

// RenderConfirmation renders the double-opt-in confirmation email
func RenderConfirmation(confirmURL string) (html, text string, err error) {
	data := struct {
		ConfirmURL string
		Year       int
	}{confirmURL, time.Now().Year()}

	html, err = execHTML(confirmationHTML, data)
	if err != nil {
		return "", "", fmt.Errorf("render confirmation html: %w", err)
	}
	text, err = execText(confirmationText, data)
	if err != nil {
		return "", "", fmt.Errorf("render confirmation text: %w", err)
	}
	return html, text, nil
}

// RenderWelcome renders the post-confirmation welcome email
func RenderWelcome(unsubscribeURL string) (html, text string, err error) {
	data := struct {
		UnsubscribeURL string
		Year           int
	}{unsubscribeURL, time.Now().Year()}

	html, err = execHTML(welcomeHTML, data)
	if err != nil {
		return "", "", fmt.Errorf("render welcome html: %w", err)
	}
	text, err = execText(welcomeText, data)
	if err != nil {
		return "", "", fmt.Errorf("render welcome text: %w", err)
	}
	return html, text, nil
}

func execHTML(t *htmltemplate.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func execText(t *texttemplate.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var dailyHTML = htmltemplate.Must(htmltemplate.New("daily").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; background: #F9FAFB; margin: 0; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #FFFFFF; border-radius: 8px; padding: 32px;">
    <h1 style="font-size: 20px; margin-top: 0;">AI Bubble Index Daily Briefing</h1>
    <p style="color: #6B7280; margin-top: -8px;">{{.Date}}</p>

    <div style="text-align: center; padding: 24px; border-radius: 8px; background: {{.RiskHex}}1A;">
      <div style="font-size: 48px; font-weight: 700; color: {{.RiskHex}};">{{printf "%.1f" .Score}}</div>
      <div style="font-size: 16px; font-weight: 600; color: {{.RiskHex}};">{{.RiskLevel}} RISK</div>
      {{if ne .TrendDirection "neutral"}}<div style="font-size: 13px; color: #6B7280; margin-top: 4px;">{{.TrendDirection}} {{printf "%.1f" .TrendChange}} vs yesterday</div>{{end}}
    </div>

    <p>{{.Description}}</p>

    <h2 style="font-size: 16px;">Top Risk Factors</h2>
    <ol>
      {{range .TopFactors}}<li>{{.Name}}: {{printf "%.1f" .Value}}/100</li>
      {{end}}
    </ol>

    <h2 style="font-size: 16px;">All Metrics</h2>
    <table style="width: 100%; border-collapse: collapse; font-size: 13px;">
      <tr style="text-align: left; color: #6B7280;">
        <th style="padding: 6px 0;">Metric</th><th>Reading</th><th>Weight</th><th>Contribution</th>
      </tr>
      {{range .Metrics}}<tr style="border-top: 1px solid #E5E7EB;">
        <td style="padding: 6px 0;">{{.Name}}</td>
        <td>{{printf "%.1f" .Value}}</td>
        <td>{{printf "%.0f" .Weight}}%</td>
        <td>{{printf "%.2f" .Contribution}}</td>
      </tr>
      {{end}}
    </table>

    <p style="font-size: 12px; color: #6B7280; margin-top: 24px;">
      Scale: 0-40 low (green), 41-60 moderate (amber), 61-80 high (orange), 81-100 extreme (red).
      This briefing is market commentary, not investment advice.
    </p>
    <p style="font-size: 12px; color: #9CA3AF;">
      <a href="{{.UnsubscribeURL}}" style="color: #9CA3AF;">Unsubscribe</a>
    </p>
  </div>
</body>
</html>`))

var dailyText = texttemplate.Must(texttemplate.New("daily").Parse(`AI BUBBLE INDEX DAILY BRIEFING
{{.Date}}

Index: {{printf "%.1f" .Score}}/100 ({{.RiskLevel}} RISK)
{{if ne .TrendDirection "neutral"}}Trend: {{.TrendDirection}} {{printf "%.1f" .TrendChange}} vs yesterday
{{end}}
{{.Description}}

TOP RISK FACTORS
{{range $i, $f := .TopFactors}}{{$f.Name}}: {{printf "%.1f" $f.Value}}/100
{{end}}
ALL METRICS
{{range .Metrics}}- {{.Name}}: {{printf "%.1f" .Value}} (weight {{printf "%.0f" .Weight}}%, contributes {{printf "%.2f" .Contribution}})
{{end}}
Scale: 0-40 low, 41-60 moderate, 61-80 high, 81-100 extreme.
This briefing is market commentary, not investment advice.

Unsubscribe: {{.UnsubscribeURL}}
`))

var confirmationHTML = htmltemplate.Must(htmltemplate.New("confirm").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; background: #F9FAFB; margin: 0; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #FFFFFF; border-radius: 8px; padding: 32px;">
    <h1 style="font-size: 20px; margin-top: 0;">Confirm your subscription</h1>
    <p>You asked to receive the AI Bubble Index daily briefing. Click the button below to confirm.</p>
    <p style="text-align: center; margin: 32px 0;">
      <a href="{{.ConfirmURL}}" style="background: #2563EB; color: #FFFFFF; padding: 12px 24px; border-radius: 6px; text-decoration: none; font-weight: 600;">Confirm subscription</a>
    </p>
    <p style="font-size: 12px; color: #6B7280;">If you did not request this, ignore this email and nothing will be sent.</p>
  </div>
</body>
</html>`))

var confirmationText = texttemplate.Must(texttemplate.New("confirm").Parse(`Confirm your AI Bubble Index subscription

You asked to receive the daily briefing. Open this link to confirm:

{{.ConfirmURL}}

If you did not request this, ignore this email and nothing will be sent.
`))

var welcomeHTML = htmltemplate.Must(htmltemplate.New("welcome").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: -apple-system, Helvetica, Arial, sans-serif; background: #F9FAFB; margin: 0; padding: 24px;">
  <div style="max-width: 600px; margin: 0 auto; background: #FFFFFF; border-radius: 8px; padding: 32px;">
    <h1 style="font-size: 20px; margin-top: 0;">You're in</h1>
    <p>Your subscription is confirmed. Every morning you'll get the AI Bubble Index score, its trend, and the three metrics driving it.</p>
    <p style="font-size: 12px; color: #9CA3AF;">
      <a href="{{.UnsubscribeURL}}" style="color: #9CA3AF;">Unsubscribe</a>
    </p>
  </div>
</body>
</html>`))

var welcomeText = texttemplate.Must(texttemplate.New("welcome").Parse(`You're in.

Your subscription is confirmed. Every morning you'll get the AI Bubble
Index score, its trend, and the three metrics driving it.

Unsubscribe: {{.UnsubscribeURL}}
`))
