// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package validation wraps a singleton go-playground/validator instance with
// the custom rules used by frame bodies and credentials.
//
//	type sendRequest struct {
//	    RoomID  string `json:"roomId" validate:"required,roomid"`
//	    Content string `json:"content" validate:"required,max=4096"`
//	}
//
//	if err := validation.ValidateStruct(&req); err != nil {
//	    return err // "content is required"
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxIdentityLength bounds usernames and other identity strings.
const MaxIdentityLength = 64

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestValidationError collects every failed rule of a struct.
type RequestValidationError struct {
	Fields []FieldError
}

// Error joins the field messages.
func (e *RequestValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		messages[i] = f.Message
	}
	return strings.Join(messages, "; ")
}

// GetValidator returns the shared validator, creating it on first use.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report JSON field names so clients recognise them.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})

		mustRegister(validate, "identity", isIdentity)
		mustRegister(validate, "roomid", isRoomID)
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn func(string) bool) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return fn(fl.Field().String())
	})
	if err != nil {
		panic(fmt.Sprintf("register %s validator: %v", tag, err))
	}
}

// isIdentity accepts 1..64 printable runes without whitespace or ':'.
// ':' is reserved as the direct-conversation separator.
func isIdentity(s string) bool {
	if s == "" || len([]rune(s)) > MaxIdentityLength {
		return false
	}
	for _, r := range s {
		if r == ':' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// isRoomID accepts 1..128 printable runes without whitespace or '/'.
func isRoomID(s string) bool {
	if s == "" || len([]rune(s)) > 128 {
		return false
	}
	for _, r := range s {
		if r == '/' || unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}

// ValidateStruct runs the struct tags of s. It returns nil or a
// *RequestValidationError.
func ValidateStruct(s interface{}) error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestValidationError{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	fields := make([]FieldError, len(verrs))
	for i, fe := range verrs {
		fields[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return &RequestValidationError{Fields: fields}
}

// ValidateIdentity checks a bare identity string such as a username credential.
func ValidateIdentity(identity string) error {
	if err := GetValidator().Var(identity, "identity"); err != nil {
		return fmt.Errorf("invalid identity %q: must be 1-%d printable characters without spaces or ':'", identity, MaxIdentityLength)
	}
	return nil
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"identity": "%s must be 1-64 printable characters without spaces or ':'",
	"roomid":   "%s must be 1-128 printable characters without spaces or '/'",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	switch fe.Tag() {
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
