package web

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/couchcryptid/weather-dashboard-service/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// manualEntry is one submitted sensor reading. Pointer fields distinguish a
// missing value from zero.
type manualEntry struct {
	Temperature *float64 `json:"temperature" validate:"required,gte=-90,lte=60"`
	Humidity    *float64 `json:"humidity" validate:"required,gte=0,lte=100"`
	Pressure    *float64 `json:"pressure" validate:"required,gte=800,lte=1100"`
	WindSpeed   *float64 `json:"wind_speed" validate:"required,gte=0,lte=150"`
	Rainfall    *float64 `json:"rainfall" validate:"omitempty,gte=0,lte=500"`
}

// entryFields lists the form fields in display order.
var entryFields = []string{"temperature", "humidity", "pressure", "wind_speed", "rainfall"}

// fieldErrors maps a field name to a human-readable message.
type fieldErrors map[string]string

// bindEntry reads a manual entry from a JSON body or a form post. The
// returned map holds the raw submitted values for re-rendering the form.
func bindEntry(c *fiber.Ctx) (manualEntry, map[string]string, fieldErrors) {
	var entry manualEntry
	raw := make(map[string]string, len(entryFields))

	if c.Is("json") {
		if err := c.BodyParser(&entry); err != nil {
			return entry, raw, fieldErrors{"body": "Malformed JSON body."}
		}
		return entry, raw, validateEntry(entry)
	}

	errs := fieldErrors{}
	targets := map[string]**float64{
		"temperature": &entry.Temperature,
		"humidity":    &entry.Humidity,
		"pressure":    &entry.Pressure,
		"wind_speed":  &entry.WindSpeed,
		"rainfall":    &entry.Rainfall,
	}
	for _, field := range entryFields {
		s := strings.TrimSpace(c.FormValue(field))
		raw[field] = s
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			errs[field] = "Enter a number."
			continue
		}
		*targets[field] = &v
	}

	for field, msg := range validateEntry(entry) {
		if _, seen := errs[field]; !seen {
			errs[field] = msg
		}
	}
	if len(errs) == 0 {
		return entry, raw, nil
	}
	return entry, raw, errs
}

func validateEntry(entry manualEntry) fieldErrors {
	err := validate.Struct(entry)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fieldErrors{"body": err.Error()}
	}
	errs := make(fieldErrors, len(verrs))
	for _, fe := range verrs {
		errs[fe.Field()] = fieldMessage(fe)
	}
	return errs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	default:
		return "Invalid value."
	}
}

// record converts a validated entry into a MANUAL record.
func (e manualEntry) record() domain.WeatherRecord {
	rec := domain.WeatherRecord{
		Temperature: *e.Temperature,
		Humidity:    *e.Humidity,
		Pressure:    *e.Pressure,
		WindSpeed:   *e.WindSpeed,
		Source:      domain.SourceManual,
	}
	if e.Rainfall != nil {
		rec.Rainfall = *e.Rainfall
	}
	return rec
}
