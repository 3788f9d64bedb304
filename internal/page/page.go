// Package page renders the configuration page served to the browser.
package page

import (
	_ "embed"
	"html/template"
	"io"
)

//go:embed index.html
var indexHTML string

var index = template.Must(template.New("index").Parse(indexHTML))

// Data fills the page.
type Data struct {
	Saved   bool // show the success alert
	Phone   string
	Message string
	Width   int // canvas size in pixels
	Height  int
}

// Render writes the page for d to w.
func Render(w io.Writer, d Data) error {
	return index.Execute(w, d)
}
