// Package render turns Markdown research reports into HTML.
package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// md renders GitHub-flavored Markdown. Raw HTML in the source is omitted.
var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

var page = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:48rem;margin:2rem auto;padding:0 1rem;line-height:1.6;color:#1f2328}
pre,code{background:#f6f8fa;border-radius:4px}
pre{padding:1rem;overflow:auto}
table{border-collapse:collapse}
th,td{border:1px solid #d0d7de;padding:.25rem .5rem}
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// HTML converts markdown to an HTML fragment.
func HTML(markdown string) ([]byte, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return nil, fmt.Errorf("rendering markdown: %w", err)
	}
	return buf.Bytes(), nil
}

// Page converts markdown to a standalone HTML document.
func Page(title, markdown string) ([]byte, error) {
	body, err := HTML(markdown)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	err = page.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)})
	if err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return buf.Bytes(), nil
}

// Links returns the destinations of all links in markdown, in document
// order and without duplicates.
func Links(markdown string) []string {
	source := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(source))

	seen := make(map[string]bool)
	var out []string
	add := func(dest string) {
		if dest != "" && !seen[dest] {
			seen[dest] = true
			out = append(out, dest)
		}
	}
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Link:
			add(string(node.Destination))
		case *ast.AutoLink:
			add(string(node.URL(source)))
		}
		return ast.WalkContinue, nil
	})
	return out
}
