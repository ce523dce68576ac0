package epub

import (
	"bytes"
	"fmt"
	"text/template"
)

// NavEntry is one chapter as listed in the table of contents.
// Title must already be escaped for XHTML text.
type NavEntry struct {
	ID    string
	Title string
}

var navTemplate = template.Must(template.New("nav").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">
<head>
<title>{{.Title}}</title>
</head>
<body>
<nav epub:type="toc" id="toc" role="doc-toc">
<h1 class="title">{{.Title}}</h1>
<ol>
{{- range .Entries}}
<li><a href="{{.ID}}{{$.Ext}}">{{.Title}}</a></li>
{{- end}}
</ol>
</nav>
</body>
</html>
`))

// BuildNav renders the navigation document listing entries in the given order.
func BuildNav(entries []NavEntry) ([]byte, error) {
	var buf bytes.Buffer
	err := navTemplate.Execute(&buf, struct {
		Title   string
		Ext     string
		Entries []NavEntry
	}{NavTitle, ChapterExt, entries})
	if err != nil {
		return nil, fmt.Errorf("rendering navigation document: %w", err)
	}
	return buf.Bytes(), nil
}
