// Package apperr holds the error taxonomy shared by every bounded context.
// Transports map Kind to a status code; Code is the machine-readable detail.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindBusinessRule
	KindConflict
	KindAuthorization
	KindInfrastructure
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindNotFound:
		return "NotFoundError"
	case KindBusinessRule:
		return "BusinessRuleViolation"
	case KindConflict:
		return "ConcurrencyError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindInfrastructure:
		return "InfrastructureError"
	default:
		return "InternalServerError"
	}
}

// Codes used across packages.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConcurrency       = "CONCURRENCY_CONFLICT"
	CodeInfrastructure    = "INFRASTRUCTURE_ERROR"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Context map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// With returns a copy of e carrying an extra context entry.
func (e *Error) With(key string, value any) *Error {
	cp := *e
	cp.Context = make(map[string]any, len(e.Context)+1)
	for k, v := range e.Context {
		cp.Context[k] = v
	}
	cp.Context[key] = value
	return &cp
}

func NotFound(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Code:    strings.ToUpper(entity) + "_NOT_FOUND",
		Message: fmt.Sprintf("%s with ID '%s' not found", entity, id),
		Context: map[string]any{"entity_type": entity, "entity_id": id},
	}
}

func BusinessRule(code, msg string) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: msg, Context: map[string]any{}}
}

// Wrapf builds a business-rule violation that keeps cause in the chain.
func Wrapf(cause error, code, format string, args ...any) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Context: map[string]any{},
		Err:     cause,
	}
}

func InsufficientStock(productID string, requested, available int) *Error {
	return &Error{
		Kind:    KindBusinessRule,
		Code:    CodeInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for product '%s': requested %d, available %d", productID, requested, available),
		Context: map[string]any{
			"product_id": productID,
			"requested":  requested,
			"available":  available,
		},
	}
}

func Conflict(entity, id string, expectedVersion int) *Error {
	return &Error{
		Kind:    KindConflict,
		Code:    CodeConcurrency,
		Message: fmt.Sprintf("concurrent modification of %s '%s' (expected version %d)", entity, id, expectedVersion),
		Context: map[string]any{
			"entity_type":      entity,
			"entity_id":        id,
			"expected_version": expectedVersion,
		},
	}
}

func Validation(field, msg string) *Error {
	ctx := map[string]any{}
	if field != "" {
		ctx["field"] = field
	}
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: msg, Context: ctx}
}

func Unauthorized(code, msg string) *Error {
	return &Error{Kind: KindAuthorization, Code: code, Message: msg, Context: map[string]any{}}
}

func Infrastructure(code, msg string, cause error) *Error {
	if code == "" {
		code = CodeInfrastructure
	}
	return &Error{Kind: KindInfrastructure, Code: code, Message: msg, Context: map[string]any{}, Err: cause}
}

func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
