package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("email").Funcs(template.FuncMap{
	"kwh": func(v float64) string { return fmt.Sprintf("%.2f kWh", v) },
	"deref": func(v *float64) float64 {
		if v == nil {
			return 0
		}
		return *v
	},
}).ParseFS(templatesFS, "templates/*.html"))

// ConsumptionNotice feeds the consumption_notice template.
type ConsumptionNotice struct {
	BrandName      string
	StudentName    string
	RoomNumber     string
	Period         string
	ConsumptionKwh float64
	LimitKwh       *float64
	ExcessKwh      *float64
	ExceedsLimit   bool
	SupportEmail   string
	PortalURL      string
}

// Render executes the named template, without the .html suffix.
func Render(name string, data any) (string, error) {
	tmpl := templates.Lookup(name + ".html")
	if tmpl == nil {
		return "", fmt.Errorf("email template %q not found", name)
	}
	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return "", fmt.Errorf("execute template %q: %w", name, err)
	}
	return body.String(), nil
}
