package project

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate

	partNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// validatorInstance configures and returns the shared validator used across
// the project package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()

		_ = v.RegisterValidation("part_name", func(fl validator.FieldLevel) bool {
			return partNamePattern.MatchString(fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		return partforgeerrors.NewSchemaValidationError(field, msg, err)
	}

	return partforgeerrors.NewSchemaValidationError("project", err.Error(), err)
}

// yamlishFieldName lowers a validator namespace like Project.Parts[app].Plugin
// into the yaml-flavored parts.app.plugin readers see in the file.
func yamlishFieldName(fe validator.FieldError) string {
	ns := fe.StructNamespace()
	segments := strings.Split(ns, ".")
	if len(segments) > 1 {
		segments = segments[1:]
	}

	lowered := make([]string, 0, len(segments))
	for _, segment := range segments {
		segment = strings.ReplaceAll(segment, "[", ".")
		segment = strings.ReplaceAll(segment, "]", "")
		lowered = append(lowered, strings.ToLower(segment))
	}
	return strings.Join(lowered, ".")
}
