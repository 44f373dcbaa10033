package predictor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Input is the raw feature set a client submits. Field names follow the
// columns of the training data.
type Input struct {
	SoilType             string   `json:"Soil_Type" csv:"Soil_Type" validate:"required"`
	SoilPH               *float64 `json:"Soil_pH" csv:"Soil_pH,omitempty" validate:"required,gte=0,lte=14"`
	SoilMoisture         *float64 `json:"Soil_Moisture" csv:"Soil_Moisture,omitempty" validate:"required,gte=0,lte=100"`
	OrganicCarbon        *float64 `json:"Organic_Carbon" csv:"Organic_Carbon,omitempty" validate:"required,gte=0,lte=10"`
	TemperatureC         *float64 `json:"Temperature_C" csv:"Temperature_C,omitempty" validate:"required,gte=-50,lte=60"`
	Humidity             *float64 `json:"Humidity" csv:"Humidity,omitempty" validate:"required,gte=0,lte=100"`
	RainfallMM           *float64 `json:"Rainfall_mm" csv:"Rainfall_mm,omitempty" validate:"required,gte=0,lte=500"`
	SunlightHours        *float64 `json:"Sunlight_Hours" csv:"Sunlight_Hours,omitempty" validate:"required,gte=0,lte=24"`
	WindSpeedKMH         *float64 `json:"Wind_Speed_kmh" csv:"Wind_Speed_kmh,omitempty" validate:"required,gte=0,lte=200"`
	CropType             string   `json:"Crop_Type" csv:"Crop_Type" validate:"required"`
	CropGrowthStage      string   `json:"Crop_Growth_Stage" csv:"Crop_Growth_Stage" validate:"required"`
	Season               string   `json:"Season" csv:"Season" validate:"required"`
	MulchingUsed         string   `json:"Mulching_Used" csv:"Mulching_Used" validate:"required,oneof=Yes No yes no"`
	PreviousIrrigationMM *float64 `json:"Previous_Irrigation_mm" csv:"Previous_Irrigation_mm,omitempty" validate:"required,gte=0"`
	Region               string   `json:"Region" csv:"Region" validate:"required"`
}

// Features returns the raw mapping handed to the encoder.
func (in Input) Features() map[string]any {
	m := map[string]any{
		"Soil_Type":              in.SoilType,
		"Soil_pH":                deref(in.SoilPH),
		"Soil_Moisture":          deref(in.SoilMoisture),
		"Organic_Carbon":         deref(in.OrganicCarbon),
		"Temperature_C":          deref(in.TemperatureC),
		"Humidity":               deref(in.Humidity),
		"Rainfall_mm":            deref(in.RainfallMM),
		"Sunlight_Hours":         deref(in.SunlightHours),
		"Wind_Speed_kmh":         deref(in.WindSpeedKMH),
		"Crop_Type":              in.CropType,
		"Crop_Growth_Stage":      in.CropGrowthStage,
		"Season":                 in.Season,
		"Previous_Irrigation_mm": deref(in.PreviousIrrigationMM),
		"Region":                 in.Region,
	}
	if in.MulchingUsed != "" {
		m["Mulching_Used"] = in.MulchingUsed
	}
	return m
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError lists every rejected field of an Input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validate checks in against the ranges the model was trained on.
func (in Input) Validate() error {
	err := getValidator().Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		}
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
