package viz

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
)

// PlotlyCDN is the script loaded by RenderHTML.
const PlotlyCDN = "https://cdn.plot.ly/plotly-2.35.2.min.js"

var pageTmpl = template.Must(template.New("chart").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<script src="{{.CDN}}"></script>
<style>body{font-family:sans-serif;margin:0;padding:1rem}#chart{width:100%;height:90vh}</style>
</head>
<body>
<div id="chart"></div>
<script>
Plotly.newPlot("chart", {{.Data}}, {{.Layout}}, {responsive: true});
</script>
</body>
</html>
`))

// RenderHTML writes a standalone page that draws fig with Plotly.
func RenderHTML(w io.Writer, fig *Figure) error {
	data, err := json.Marshal(fig.Data)
	if err != nil {
		return fmt.Errorf("marshal traces: %w", err)
	}
	layout, err := json.Marshal(fig.Layout)
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	t := fig.Title()
	if t == "" {
		t = "sqlquest chart"
	}
	// json.Marshal escapes <, > and & so the payload is safe inside <script>.
	return pageTmpl.Execute(w, map[string]any{
		"Title":  t,
		"CDN":    PlotlyCDN,
		"Data":   template.JS(data),
		"Layout": template.JS(layout),
	})
}
