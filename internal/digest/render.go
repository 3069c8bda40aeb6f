package digest

import (
	"bytes"
	"cloud.google.com/go/civil"
	"fmt"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/maxaizer/funding-digest/internal/entities"
	"html/template"
	"strings"
)

const excerptLength = 300

type Digest struct {
	Subject string
	HTML    string
	Text    string
}

var funcs = template.FuncMap{
	"excerpt":  excerpt,
	"deadline": deadline,
	"inc":      func(i int) int { return i + 1 },
}

var htmlTemplate = template.Must(template.New("digest").Funcs(funcs).Parse(`<html>
<body style="font-family: Arial, sans-serif; max-width: 720px;">
<h2>{{.Subject}}</h2>
{{range $i, $o := .Opportunities}}
<div style="border-bottom: 1px solid #ddd; padding: 12px 0;">
  <h3 style="margin: 0 0 4px 0;">{{inc $i}}. <a href="{{$o.URL}}">{{$o.Title}}</a> <small>(score {{$o.Score}})</small></h3>
  {{if $o.Organization}}<div><b>Organization:</b> {{$o.Organization}}</div>{{end}}
  <div><b>Source:</b> {{$o.Source}}</div>
  <div><b>Deadline:</b> {{deadline $o.Opportunity}}</div>
  {{if $o.Amount}}<div><b>Amount:</b> {{$o.Amount}}</div>{{end}}
  {{if $o.Eligibility}}<div><b>Eligibility:</b> {{$o.Eligibility}}</div>{{end}}
  {{if $o.Description}}<p>{{excerpt $o.Description}}</p>{{end}}
  {{if $o.Notes}}<p style="color: #a60;"><i>{{$o.Notes}}</i></p>{{end}}
</div>
{{end}}
</body>
</html>
`))

func Subject(count int, today civil.Date) string {
	noun := "opportunities"
	if count == 1 {
		noun = "opportunity"
	}
	return fmt.Sprintf("Funding digest: %d new %s (%s)", count, noun, today)
}

func Render(opportunities []entities.ScoredOpportunity, today civil.Date) (Digest, error) {
	subject := Subject(len(opportunities), today)

	var body bytes.Buffer
	err := htmlTemplate.Execute(&body, struct {
		Subject       string
		Opportunities []entities.ScoredOpportunity
	}{subject, opportunities})
	if err != nil {
		return Digest{}, fmt.Errorf("failed to render digest: %w", err)
	}

	return Digest{Subject: subject, HTML: body.String(), Text: renderText(subject, opportunities)}, nil
}

func renderText(subject string, opportunities []entities.ScoredOpportunity) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Score", "Title", "Deadline", "Source"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, WidthMax: 60}})

	for i, o := range opportunities {
		t.AppendRow(table.Row{i + 1, o.Score, o.Title, deadline(o.Opportunity), o.Source})
	}

	var b strings.Builder
	b.WriteString(subject + "\n\n")
	b.WriteString(t.Render())
	b.WriteString("\n\n")
	for i, o := range opportunities {
		fmt.Fprintf(&b, "%d. %s\n", i+1, o.URL)
		if o.Notes != "" {
			fmt.Fprintf(&b, "   Note: %s\n", o.Notes)
		}
	}
	return b.String()
}

func deadline(o entities.Opportunity) string {
	if o.Deadline == nil {
		return "Not listed"
	}
	return o.DeadlineString()
}

func excerpt(text string) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= excerptLength {
		return string(runes)
	}
	return strings.TrimSpace(string(runes[:excerptLength])) + "..."
}
