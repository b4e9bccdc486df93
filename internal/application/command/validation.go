// Package command contains write operations (CQRS - Commands).
package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/alem-hub/cohort-metrics/internal/domain/shared"
)

// validate is safe for concurrent use and caches struct metadata.
var validate = validator.New(validator.WithRequiredStructEnabled())

// validateCommand runs struct-tag validation and converts failures into a
// shared.DomainError with Kind ErrValidation.
func validateCommand(domain, op string, cmd any) error {
	err := validate.Struct(cmd)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid command", err)
	}

	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fmt.Sprintf("%s:%s", fe.Field(), fe.Tag()))
	}
	return shared.NewDomainError(domain, op, shared.ErrValidation, strings.Join(parts, ", "))
}

// FieldErrors returns the failing field -> tag pairs of a validation error,
// or nil when err did not come from tag validation.
func FieldErrors(err error) map[string]string {
	var de *shared.DomainError
	if !errors.As(err, &de) || de.Kind != shared.ErrValidation {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(de.Message, ", ") {
		field, tag, ok := strings.Cut(part, ":")
		if ok {
			out[field] = tag
		}
	}
	return out
}
