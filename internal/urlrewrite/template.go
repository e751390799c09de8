package urlrewrite

import (
	"fmt"
	"html/template"
)

// Install registers the rewriter as the "url_for" function in a template
// function map, replacing the hosting application's URL builder for
// template evaluation.
func (r *Rewriter) Install(funcs template.FuncMap) {
	funcs["url_for"] = r.TemplateFunc()
}

// TemplateFunc adapts URLFor to template calling conventions, taking
// key/value pairs instead of a map:
//
//	{{ url_for "static" "filename" "css/app.css" }}
func (r *Rewriter) TemplateFunc() func(endpoint string, pairs ...any) (string, error) {
	return func(endpoint string, pairs ...any) (string, error) {
		if len(pairs)%2 != 0 {
			return "", fmt.Errorf("url_for %q: odd number of key/value arguments", endpoint)
		}
		values := make(map[string]any, len(pairs)/2)
		for i := 0; i < len(pairs); i += 2 {
			key, ok := pairs[i].(string)
			if !ok {
				return "", fmt.Errorf("url_for %q: argument %d is not a string key", endpoint, i)
			}
			values[key] = pairs[i+1]
		}
		return r.URLFor(endpoint, values)
	}
}
