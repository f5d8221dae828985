package web

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
)

//go:embed templates/*.html
var templateFS embed.FS

// entryForm carries submitted values and messages back into the form.
type entryForm struct {
	Values map[string]string
	Errors fieldErrors
}

type views struct {
	page *template.Template
}

func loadViews() (*views, error) {
	page, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"ts": func(t time.Time) string { return t.UTC().Format("2006-01-02 15:04") },
		"num": func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"label": func(s domain.Source) string { return s.Label() },
	}).ParseFS(templateFS, "templates/dashboard.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &views{page: page}, nil
}

type fieldView struct {
	Name     string
	Label    string
	Value    string
	Error    string
	Optional bool
}

var fieldLabels = map[string]string{
	"temperature": "Temperature (°C)",
	"humidity":    "Humidity (%)",
	"pressure":    "Pressure (hPa)",
	"wind_speed":  "Wind speed",
	"rainfall":    "Rainfall (mm)",
}

func (v *views) dashboard(w io.Writer, snap snapshot, form entryForm, notice string) error {
	fields := make([]fieldView, 0, len(entryFields))
	for _, name := range entryFields {
		fields = append(fields, fieldView{
			Name:     name,
			Label:    fieldLabels[name],
			Value:    form.Values[name],
			Error:    form.Errors[name],
			Optional: name == "rainfall",
		})
	}
	return v.page.Execute(w, map[string]any{
		"Records":    snap.records,
		"Prediction": snap.prediction,
		"Training":   snap.training,
		"Fields":     fields,
		"Notice":     notice,
	})
}
