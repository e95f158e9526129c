package client

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return field.Name
			}
			return name
		})

		_ = validate.RegisterValidation("positive", func(fl validator.FieldLevel) bool {
			v, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
			return err == nil && v > 0
		})
	})
	return validate
}

// ValidationError lists the fields that failed local validation, keyed by
// JSON field name. No request is sent when it is returned.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, e.Fields[k])
	}
	return strings.Join(msgs, "; ")
}

// Validate checks a payload struct against its validate tags
func Validate(payload any) error {
	err := getValidator().Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{Fields: make(map[string]string, len(verrs))}
	for _, fe := range verrs {
		out.Fields[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", label)
	case "positive":
		return fmt.Sprintf("%s must be > 0", label)
	case "numeric":
		return fmt.Sprintf("%s must be a number", label)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", label)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", label)
	}
}

// humanize turns "model_number" into "Model number"
func humanize(field string) string {
	s := strings.ReplaceAll(field, "_", " ")
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ValidateVehiclePatch applies the vehicle rules to the fields being changed
func ValidateVehiclePatch(fields Fields) error {
	errs := map[string]string{}
	for _, key := range []string{"brand", "model_number"} {
		if v, ok := fields[key]; ok && strings.TrimSpace(fmt.Sprint(v)) == "" {
			errs[key] = fmt.Sprintf("%s is required", humanize(key))
		}
	}
	if v, ok := fields["price"]; ok {
		if n, err := strconv.ParseFloat(fmt.Sprint(v), 64); err != nil || n <= 0 {
			errs["price"] = "Price must be > 0"
		}
	}
	return fieldErrors(errs)
}

// ValidateSalePatch applies the sale edit rules to the fields being changed
func ValidateSalePatch(fields Fields) error {
	errs := map[string]string{}
	if v, ok := fields["customer_name"]; ok && strings.TrimSpace(fmt.Sprint(v)) == "" {
		errs["customer_name"] = "Customer name is required"
	}
	if v, ok := fields["amount"]; ok {
		if _, err := strconv.ParseFloat(fmt.Sprint(v), 64); err != nil {
			errs["amount"] = "Amount must be a number"
		}
	}
	if v, ok := fields["status"]; ok {
		switch fmt.Sprint(v) {
		case SaleStatusPending, SaleStatusCompleted, SaleStatusCancelled:
		default:
			errs["status"] = "Status must be one of: pending, completed, cancelled"
		}
	}
	return fieldErrors(errs)
}

func fieldErrors(errs map[string]string) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Fields: errs}
}
