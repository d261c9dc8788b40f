package widget

import (
	"html/template"
	"io"

	"github.com/nepalcovid19/searchserve/pkg/search"
)

var searchTemplate = template.Must(template.New("search").Funcs(template.FuncMap{
	"suggestions": QuickSuggestions,
	"isState":     func(r search.Result) bool { return r.Type == search.KindState },
}).Parse(`<div class="Search">
<label>Search your district, resources, etc</label>
<div class="line"></div>
<input type="text" name="q" value="{{.Value}}">
<div class="search-button"></div>
{{- if .ShowClose}}
<div class="close-button" data-action="clear"></div>
{{- end}}
{{- if .CorrectedQuery}}
<div class="corrected">Showing results for <em>{{.CorrectedQuery}}</em></div>
{{- end}}
{{- if .Results}}
<div class="results">
{{- range .Results}}
{{- if isState .}}
<a href="{{.Href}}"><div class="result"><div class="result-name">{{.Name}}</div><div class="result-type">Visit {{.Type}} page</div></div></a>
{{- else}}
<a href="{{.Href}}" target="_noblank" class="essential-result">
<div class="result-top"><div class="result-top-left"><div class="result-name">{{.Name}}</div><div class="result-location">{{.City}}, {{.State}}</div></div><div class="result-category"><div>{{.CategoryLabel}}</div></div></div>
<div class="result-description">{{.Description}}</div>
<div class="result-contact"><div>{{.Contact}}</div></div>
</a>
{{- end}}
{{- end}}
</div>
{{- end}}
{{- if .Expanded}}
<div class="expanded">
{{- range $i, $g := suggestions}}
<div class="{{if eq $i 0}}expanded-left{{else}}expanded-right{{end}}">
<h3>{{$g.Title}}</h3>
<div class="suggestions">
{{- range $g.Labels}}
<div class="suggestion"><div>-</div><h4 data-value="{{.}}">{{.}}</h4></div>
{{- end}}
</div>
</div>
{{- end}}
</div>
{{- end}}
</div>
`))

// Render writes the widget as an HTML fragment. State routes are relative
// (state/<code>); essentials open their website in a new tab.
func Render(w io.Writer, st State) error {
	return searchTemplate.Execute(w, st)
}
