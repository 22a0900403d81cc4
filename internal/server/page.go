package server

import (
	"html/template"
	"io"

	"Newsletter-Bot/internal/status"
)

// indexTemplate embeds the seed snapshot in data attributes so the page
// script can initialize its countdown without an extra round trip.
var indexTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Newsletter Bot</title>
<style>
body { font-family: Arial, Helvetica, sans-serif; max-width: 720px; margin: 40px auto; padding: 0 16px; color: #222; }
h1 { border-bottom: 2px solid #3b6ea5; padding-bottom: 8px; }
.card { border: 1px solid #ddd; border-radius: 6px; padding: 16px; margin: 16px 0; }
#countdown { font-size: 28px; font-weight: bold; }
.inactive { color: #888; }
form input { padding: 6px; margin-right: 8px; }
form button { padding: 6px 16px; }
</style>
</head>
<body
  data-active="{{.Active}}"
  data-next-execution="{{.NextExec}}"
  data-server-time="{{.ServerTime}}">
<h1>Newsletter Bot</h1>

<div class="card">
  <div>Status: {{if .Active}}<strong>active</strong> ({{.Topic}}){{else}}<span class="inactive">inactive</span>{{end}}</div>
  <div>Next newsletter in: <span id="countdown">{{.Countdown}}</span></div>
  {{if .LastExec}}<div>Last sent: {{.LastExec}}</div>{{end}}
  {{if .Message}}<div>Note: {{.Message}}</div>{{end}}
</div>

<div class="card">
  <form method="post" action="/api/start">
    <input type="text" name="topic" placeholder="Topic" required>
    <input type="email" name="recipient" placeholder="Recipient email" required>
    <button type="submit">Start</button>
  </form>
  <form method="post" action="/api/stop">
    <button type="submit">Stop</button>
  </form>
</div>

</body>
</html>
`))

type indexData struct {
	Active     bool
	Topic      string
	NextExec   string
	LastExec   string
	ServerTime string
	Countdown  string
	Message    string
}

// renderIndex writes the dashboard HTML for the given snapshot.
func renderIndex(w io.Writer, snap status.Snapshot) error {
	data := indexData{
		Active:     snap.Active,
		Topic:      snap.Topic,
		ServerTime: snap.ServerTimeUTC,
		Countdown:  "not scheduled",
	}
	if snap.NextExecutionUTC != nil {
		data.NextExec = *snap.NextExecutionUTC
	}
	if snap.LastExecutionUTC != nil {
		data.LastExec = *snap.LastExecutionUTC
	}
	if snap.TimeUntilNextStr != nil {
		data.Countdown = *snap.TimeUntilNextStr
	}
	if snap.StatusMessage != nil {
		data.Message = *snap.StatusMessage
	}

	return indexTemplate.Execute(w, data)
}
