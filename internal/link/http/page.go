package http

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/aussiebroadwan/minelink/pkg/httpx"
	"github.com/aussiebroadwan/minelink/pkg/slogx"
)

// resultPage is the browser-facing page rendered at the end of the callback.
// It is intentionally self-contained: no external assets, safe to serve from
// behind any reverse proxy.
const resultPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
  body { font-family: system-ui, sans-serif; background: #1e1e28; color: #e8e8ef;
         display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
  main { background: #2a2a38; border-radius: 12px; padding: 2.5rem 3rem; max-width: 28rem; text-align: center; }
  h1 { font-size: 1.4rem; margin: 0 0 .75rem; }
  h1.ok { color: #6fcf7c; }
  h1.err { color: #e06c75; }
  p { margin: 0; color: #b8b8c8; line-height: 1.5; }
</style>
</head>
<body>
<main>
<h1 class="{{if .Success}}ok{{else}}err{{end}}">{{.Title}}</h1>
<p>{{.Message}}</p>
</main>
</body>
</html>
`

var resultTmpl = template.Must(template.New("result").Parse(resultPage))

type pageData struct {
	Success bool
	Title   string
	Message string
}

// renderResult writes the callback result page with the given status code.
func renderResult(w http.ResponseWriter, r *http.Request, code int, data pageData) {
	var buf bytes.Buffer
	if err := resultTmpl.Execute(&buf, data); err != nil {
		slogx.FromContext(r.Context()).Error("result page render failed", "error", err)
		http.Error(w, data.Message, code)
		return
	}
	httpx.WriteHTML(w, code, buf.Bytes())
}
