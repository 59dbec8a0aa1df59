package http

import (
	"errors"
	"reflect"
	"strings"

	"expensetracker/internal/auth"
	"expensetracker/internal/core"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterAlias("pwd", "min=8,max=72")
	v.RegisterAlias("currency", "len=3,uppercase")
	return v
}

// ToDetails converts validator errors into a map[field]message suitable for
// the error details of a 422 response.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	if field, ok := domainErrorField(err); ok {
		return map[string]string{field: err.Error()}
	}
	return map[string]string{"payload": "invalid payload"}
}

func formatFieldError(fe validator.FieldError) string {
	param := fe.Param()
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "url":
		return "must be a valid URL"
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")
	case "len":
		return "must be exactly " + param + " characters long"
	case "uppercase":
		return "must be in uppercase"
	case "pwd":
		return "must be between 8 and 72 characters"
	case "currency":
		return "must be a three-letter uppercase code"
	case "min":
		if isNumberKind(fe.Kind()) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(fe.Kind()) {
			return "must be at most " + param
		}
		return "must be at most " + param + " characters long"
	case "gte":
		return "must be greater than or equal to " + param
	case "lte":
		return "must be less than or equal to " + param
	default:
		if param != "" {
			return "failed " + fe.Tag() + "=" + param
		}
		return "failed " + fe.Tag()
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// domainErrors maps validation sentinels raised below the HTTP layer to the
// request field they concern.
var domainErrors = []struct {
	err   error
	field string
}{
	{core.ErrInvalidDate, "date"},
	{core.ErrInvalidAmount, "amount"},
	{core.ErrEmptyTitle, "title"},
	{core.ErrTitleTooLong, "title"},
	{core.ErrDescriptionTooLong, "description"},
	{core.ErrEmptyCategory, "category"},
	{core.ErrCategoryTooLong, "category"},
	{core.ErrInvalidFrequency, "frequency"},
	{core.ErrEmptyName, "name"},
	{core.ErrNameTooLong, "name"},
	{core.ErrInvalidEmail, "email"},
	{core.ErrInvalidCurrency, "currency"},
	{core.ErrInvalidAvatar, "avatar"},
	{core.ErrInvalidThreshold, "alert_threshold"},
	{core.ErrInvalidBudget, "monthly_budget"},
	{auth.ErrWeakPassword, "password"},
}

func domainErrorField(err error) (string, bool) {
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return d.field, true
		}
	}
	return "", false
}
