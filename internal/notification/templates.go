package notification

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	alertdomain "github.com/openpour/openpour/internal/alert/domain"
)

var emptyBottleTemplate = template.Must(template.New("empty_bottle").Parse(`
<h2>Bottle empty</h2>
<p>{{.Message}}</p>
{{if .IngredientName}}<p>Ingredient: <strong>{{.IngredientName}}</strong></p>{{end}}
{{if .PumpNumber}}<p>Pump: <strong>{{.PumpNumber}}</strong></p>{{end}}
<p>Replace the bottle and refill the pump to clear this alert.</p>
<p><small>Raised at {{.CreatedAt}}</small></p>
`))

var genericTemplate = template.Must(template.New("generic").Parse(`
<h2>Dispenser alert: {{.Type}}</h2>
<p>{{.Message}}</p>
{{if .IngredientName}}<p>Ingredient: <strong>{{.IngredientName}}</strong></p>{{end}}
{{if .PumpNumber}}<p>Pump: <strong>{{.PumpNumber}}</strong></p>{{end}}
<p>Severity: <strong>{{.Severity}}</strong></p>
<p><small>Raised at {{.CreatedAt}}</small></p>
`))

type templateData struct {
	Type           string
	Severity       string
	Message        string
	IngredientName string
	PumpNumber     *int
	CreatedAt      string
}

// render produces the subject and HTML body for an alert
func render(view *alertdomain.View) (string, string, error) {
	data := templateData{
		Type:           string(view.Type),
		Severity:       string(view.Severity),
		Message:        view.Message,
		IngredientName: view.IngredientName,
		PumpNumber:     view.PumpNumber,
		CreatedAt:      view.CreatedAt.Format(time.RFC1123),
	}

	tmpl := genericTemplate
	if view.Type == alertdomain.TypeEmptyBottle {
		tmpl = emptyBottleTemplate
	}

	var body strings.Builder
	if err := tmpl.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render notification template: %w", err)
	}

	subject := fmt.Sprintf("[Dispenser] %s: %s", strings.ToUpper(string(view.Severity)), view.Message)
	return subject, body.String(), nil
}
