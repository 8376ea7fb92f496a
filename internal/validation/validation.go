// Package validation checks request bodies with go-playground/validator.
//
// Rules live in struct tags next to the request types in package handler:
//
//	type commentRequest struct {
//	    RecipeID string `json:"recipeId" validate:"required"`
//	    Text     string `json:"text" validate:"required,min=5"`
//	}
//
// Struct reports the first failing field as an apperror.ValidationFailed,
// named by its JSON key.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/recipebook/internal/apperror"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared validator. It caches struct metadata and is
// safe for concurrent use.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonName)
	})
	return validate
}

// Struct validates s and returns nil or an *apperror.AppError wrapping
// apperror.ErrValidation.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperror.ValidationFailed("", err.Error())
	}

	fe := fieldErrs[0]
	return apperror.ValidationFailed(fe.Field(), message(fe))
}

func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

var messages = map[string]string{
	"required": "%s is required",
	"email":    "%s must be a valid email address",
}

func message(fe validator.FieldError) string {
	field, param := fe.Field(), fe.Param()

	if tmpl, ok := messages[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}

	switch fe.Tag() {
	case "min":
		switch fe.Kind() {
		case reflect.String:
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		case reflect.Slice:
			return fmt.Sprintf("%s must have at least %s item(s)", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}
