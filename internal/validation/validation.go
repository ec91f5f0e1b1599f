// Package validation checks request payloads against their `validate` tags.
package validation

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New()

		// Report fields by their JSON names.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})

		validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		// Eight characters, upper case, no 0/1/I/O.
		validate.RegisterAlias("invitecode", "len=8,alphanum,uppercase,excludesall=01IO")
	})
	return validate
}

// FieldError is one failed rule.
type FieldError struct {
	Field string
	Tag   string
	Param string
}

func (f FieldError) message() string {
	switch f.Tag {
	case "required", "notblank":
		return f.Field + " is required"
	case "email":
		return f.Field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", f.Field, f.Param)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", f.Field, f.Param)
	case "invitecode":
		return f.Field + " must be an invite code"
	}
	return f.Field + " is invalid"
}

// Error lists every rule a value failed.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.message())
	}
	return strings.Join(msgs, "; ")
}

// Struct validates object's tagged fields. It returns nil or an *Error.
func Struct(object interface{}) error {
	return convert(getValidator().Struct(object))
}

// Var validates a single value against tag.
func Var(value interface{}, tag string) error {
	return convert(getValidator().Var(value, tag))
}

func convert(err error) error {
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	out := &Error{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if field == "" {
			field = "value"
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Tag: fe.Tag(), Param: fe.Param()})
	}
	return out
}
