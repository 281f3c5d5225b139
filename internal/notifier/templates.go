package notifier

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/user/arxiv-digest/internal/summarizer"
)

var digestTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f5f5f5; }
.container { background-color: white; padding: 30px; border-radius: 8px; }
h1 { color: #2c3e50; font-size: 24px; }
.summary { background-color: #f8f9fa; padding: 15px; border-radius: 6px; margin-bottom: 30px; }
.keyword-badge { display: inline-block; background-color: #fff3cd; color: #856404; padding: 3px 10px; border-radius: 12px; font-size: 13px; margin-right: 6px; }
.paper-card { border: 1px solid #e1e4e8; border-radius: 6px; padding: 20px; margin-bottom: 20px; }
.paper-title { font-size: 18px; font-weight: 600; margin-bottom: 8px; }
.paper-title a { color: #0366d6; text-decoration: none; }
.paper-meta { color: #586069; font-size: 14px; margin-bottom: 10px; }
.category { display: inline-block; background-color: #e1f5fe; color: #01579b; padding: 2px 8px; border-radius: 3px; font-size: 12px; margin-right: 5px; }
.matched { color: #2e7d32; font-size: 14px; margin-bottom: 10px; }
.footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #e1e4e8; color: #586069; font-size: 12px; text-align: center; }
</style>
</head>
<body>
<div class="container">
<h1>arXiv Weekly Digest</h1>
<div class="summary">
<strong>Week Summary</strong>
<ul>
<li>Showing top {{.ShownCount}} of {{.TotalCount}} papers collected this week</li>
{{if .Keywords}}<li>Filtering by keywords: {{range .Keywords}}<span class="keyword-badge">{{.}}</span>{{end}}</li>{{end}}
{{if .MatchedCount}}<li>{{.MatchedCount}} papers matched your keywords</li>{{end}}
<li>Collection period: {{.DateRange}}</li>
</ul>
</div>
{{range .Papers}}
<div class="paper-card">
<div class="paper-title"><a href="{{.URL}}">{{.Title}}</a></div>
<div class="paper-meta"><a href="{{.URL}}">{{.ID}}</a> &middot; {{.Date}}</div>
<div>{{range .Categories}}<span class="category">{{.}}</span>{{end}}</div>
{{if .Matched}}<div class="matched">Matches: {{.Matched}}</div>{{end}}
<div>{{.Summary}}</div>
</div>
{{end}}
<div class="footer">Generated by the arXiv digest bot</div>
</div>
</body>
</html>
`))

var errorTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: monospace; background-color: #fff5f5; padding: 20px; }
.container { background-color: white; border: 2px solid #c62828; border-radius: 8px; padding: 30px; max-width: 700px; margin: 0 auto; }
h1 { color: #c62828; }
.error-box { background-color: #ffebee; border-left: 4px solid #c62828; padding: 15px; margin: 20px 0; }
.logs { background-color: #f5f5f5; padding: 15px; border-radius: 4px; font-size: 12px; overflow-x: auto; }
</style>
</head>
<body>
<div class="container">
<h1>arXiv Digest Bot Error Report</h1>
<div class="error-box"><strong>Message:</strong> {{.Message}}</div>
<div>
<strong>Mode:</strong> {{.Mode}}<br>
<strong>Time:</strong> {{.Time}}<br>
<strong>Exit Code:</strong> {{.ExitCode}} ({{.ExitMeaning}})
</div>
{{if .Context}}
<h3>Context</h3>
<ul>{{range .Context}}<li><strong>{{.Name}}:</strong> {{.Value}}</li>{{end}}</ul>
{{end}}
<h3>Recent Logs</h3>
<div class="logs">{{range .Logs}}{{.}}<br>{{end}}</div>
<h3>Next Steps</h3>
<ul>
<li>Check the error message and context above</li>
<li>Verify configuration and API keys</li>
<li>The next scheduled run will retry automatically</li>
</ul>
</div>
</body>
</html>
`))

var successTmpl = template.Must(template.New("success").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Arial, sans-serif; padding: 20px; background-color: #f0f9ff; }
.container { background-color: white; border: 2px solid #0ea5e9; border-radius: 8px; padding: 30px; max-width: 700px; margin: 0 auto; }
h1 { color: #0369a1; }
.success-box { background-color: #ecfdf5; border-left: 4px solid #10b981; padding: 15px; margin: 20px 0; }
</style>
</head>
<body>
<div class="container">
<h1>arXiv Digest Bot - Success Report</h1>
<p>Completed: {{.Completed}}</p>
<div class="success-box">
<strong>Mode:</strong> {{.Mode}}<br>
<strong>Status:</strong> SUCCESS<br>
<strong>Summary:</strong> {{.Blurb}}
</div>
<h3>Run Statistics</h3>
<ul>{{range .Stats}}<li><strong>{{.Name}}:</strong> {{.Value}}</li>{{end}}</ul>
<p>This is an automated notification; the next scheduled run will execute per your cron configuration.</p>
</div>
</body>
</html>
`))

type paperCard struct {
	Title      string
	URL        string
	ID         string
	Date       string
	Categories []string
	Matched    string
	Summary    string
}

type digestData struct {
	Papers       []paperCard
	ShownCount   int
	TotalCount   int
	DateRange    string
	Keywords     []string
	MatchedCount int
}

func renderDigest(papers []summarizer.SummarizedPaper, totalFetched int, dateRange string, keywords []string) (string, error) {
	data := digestData{
		ShownCount: len(papers),
		TotalCount: totalFetched,
		DateRange:  dateRange,
		Keywords:   keywords,
	}

	for _, sp := range papers {
		p := sp.Ranked.Paper
		cats := p.Categories
		if len(cats) > 3 {
			cats = cats[:3]
		}
		if len(sp.Ranked.MatchedKeywords) > 0 {
			data.MatchedCount++
		}
		data.Papers = append(data.Papers, paperCard{
			Title:      p.Title,
			URL:        p.URL,
			ID:         p.ID,
			Date:       p.Published.Format("Jan 02, 2006"),
			Categories: cats,
			Matched:    strings.Join(sp.Ranked.MatchedKeywords, ", "),
			Summary:    sp.Summary,
		})
	}

	var buf strings.Builder
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderError(details ErrorDetails) (string, error) {
	meanings := map[int]string{
		1: "configuration error",
		2: "arXiv API error",
		3: "summarization error",
		4: "email delivery error",
		5: "nothing to do",
	}
	meaning, ok := meanings[details.ExitCode]
	if !ok {
		meaning = "unknown error"
	}

	data := struct {
		Mode        string
		Time        string
		Message     string
		ExitCode    int
		ExitMeaning string
		Context     []Stat
		Logs        []string
	}{
		Mode:        details.Mode,
		Time:        details.Time.UTC().Format(time.RFC3339),
		Message:     details.Message,
		ExitCode:    details.ExitCode,
		ExitMeaning: meaning,
		Context:     details.Context,
		Logs:        details.Logs,
	}

	var buf strings.Builder
	if err := errorTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderSuccess(mode string, stats []Stat) (string, error) {
	blurb := "Successfully generated summaries and sent the digest email."
	if mode == "ingest" {
		blurb = "Successfully fetched and staged new papers from arXiv."
	}

	data := struct {
		Mode      string
		Completed string
		Blurb     string
		Stats     []Stat
	}{
		Mode:      strings.ToUpper(mode),
		Completed: fmt.Sprintf("%s UTC", time.Now().UTC().Format("2006-01-02 15:04:05")),
		Blurb:     blurb,
		Stats:     stats,
	}

	var buf strings.Builder
	if err := successTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
