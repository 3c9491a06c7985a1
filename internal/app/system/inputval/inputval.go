// Package inputval validates decoded request documents with struct tags and
// turns failures into field → message maps for API responses.
package inputval

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"sort"
	"strings"

	"github.com/dalemusser/inventoryhub/internal/app/system/httpjson"
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// Validate runs struct-level validation.
func Validate(s any) error {
	return validate.Struct(s)
}

// Fields converts validation errors into field name → message. Other errors
// yield an empty map.
func Fields(err error) map[string]string {
	out := make(map[string]string)
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return out
	}
	for _, e := range ve {
		out[fieldPath(e)] = fieldMessage(e)
	}
	return out
}

// Message flattens validation errors into one line, sorted by field.
func Message(err error) string {
	fields := Fields(err)
	if len(fields) == 0 {
		if err == nil {
			return ""
		}
		return err.Error()
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fields[k])
	}
	return strings.Join(parts, "; ")
}

// fieldPath drops the struct name from the namespace: Item.values[0].name
// becomes values[0].name.
func fieldPath(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return e.Field()
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "min":
		return fmt.Sprintf("Minimum length is %s", e.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", e.Param())
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", e.Param())
	case "email":
		return "Must be a valid email address"
	case "url":
		return "Must be a valid URL"
	case "alphanum":
		return "Must contain only letters and numbers"
	case "gte":
		return fmt.Sprintf("Must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("Must be less than or equal to %s", e.Param())
	default:
		return fmt.Sprintf("Validation failed on '%s'", e.Tag())
	}
}

// Respond writes the 422 response for a validation failure.
func Respond(w http.ResponseWriter, err error) {
	httpjson.Write(w, http.StatusUnprocessableEntity, map[string]any{
		"message": "Validation failed",
		"fields":  Fields(err),
	})
}

// DecodeRequest decodes the JSON body into T and validates it. On failure it
// writes the error response and returns false.
func DecodeRequest[T any](w http.ResponseWriter, r *http.Request) (*T, bool) {
	var req T
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	if err := Validate(&req); err != nil {
		Respond(w, err)
		return nil, false
	}
	return &req, true
}
