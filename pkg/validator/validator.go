package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/VineTech-EU/symfony-eventsource-starter-sub000/pkg/errors"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
	ValidateField(field string, value interface{}, rules ...string) error
}

type playground struct {
	v *validator.Validate
}

func New() Validator {
	return &playground{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate checks the `validate` struct tags. Failures come back as a
// bad-request AppError listing every offending field.
func (p *playground) Validate(obj interface{}) error {
	if err := p.v.Struct(obj); err != nil {
		return translate(err, "")
	}
	return nil
}

func (p *playground) ValidateField(field string, value interface{}, rules ...string) error {
	if err := p.v.Var(value, strings.Join(rules, ",")); err != nil {
		return translate(err, field)
	}
	return nil
}

func translate(err error, field string) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return apperrors.NewBadRequest("validation failed", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := field
		if name == "" {
			name = fe.Field()
		}
		msgs = append(msgs, describe(name, fe))
	}
	return apperrors.NewBadRequest(strings.Join(msgs, "; "), err)
}

func describe(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
