package utils

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var Validate = validator.New()

// ErrorBody is the payload of the error envelope.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// Envelope is the success shape of every endpoint.
type Envelope struct {
	Data       any     `json:"data"`
	NextCursor *string `json:"next_cursor"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// RequestError is returned by handlers for client errors; ErrorHandler renders
// it with its status and details.
type RequestError struct {
	Status  int
	Message string
	Details any
}

func (e *RequestError) Error() string { return e.Message }

func NewRequestError(status int, message string, details any) *RequestError {
	return &RequestError{Status: status, Message: message, Details: details}
}

func ErrorResponse(c *fiber.Ctx, status int, message string) error {
	return ErrorWithDetails(c, status, message, nil)
}

func ErrorWithDetails(c *fiber.Ctx, status int, message string, details any) error {
	return c.Status(status).JSON(ErrorEnvelope{
		Error: ErrorBody{Code: status, Message: message, Details: details},
	})
}

// OK writes {data, next_cursor}; an empty cursor renders as null.
func OK(c *fiber.Ctx, status int, data any, nextCursor string) error {
	env := Envelope{Data: data}
	if nextCursor != "" {
		env.NextCursor = &nextCursor
	}
	return c.Status(status).JSON(env)
}

// ValidationDetails flattens validator errors into field details keyed by the
// json or query tag name. Non-validation errors yield nil.
func ValidationDetails(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return out
}

func init() {
	Validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, key := range []string{"json", "query"} {
			name, _, _ := strings.Cut(f.Tag.Get(key), ",")
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
}
