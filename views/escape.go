package views

import "html/template"

// Escape is the only way user-controlled text becomes template.HTML. The
// templates print these fields as-is, so anything not passed through here
// must stay a plain string and be left to html/template.
func Escape(s string) template.HTML {
	return template.HTML(template.HTMLEscapeString(s))
}
