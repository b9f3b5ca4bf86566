// Code shaped after go-swagger output. Keep payload types free of business logic.

package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

// PublicHTTPErrorType Type of error returned, should be used for client-side error handling
type PublicHTTPErrorType string

const (
	PublicHTTPErrorTypeGeneric            PublicHTTPErrorType = "generic"
	PublicHTTPErrorTypeINVALIDSTATE       PublicHTTPErrorType = "INVALID_STATE"
	PublicHTTPErrorTypeNONMONOTONIC       PublicHTTPErrorType = "NON_MONOTONIC"
	PublicHTTPErrorTypeINVALIDCREDENTIALS PublicHTTPErrorType = "INVALID_CREDENTIALS"
	PublicHTTPErrorTypeALREADYEXISTS      PublicHTTPErrorType = "ALREADY_EXISTS"
	PublicHTTPErrorTypeNOTRETRYABLE       PublicHTTPErrorType = "NOT_RETRYABLE"
	PublicHTTPErrorTypeCHAINUNAVAILABLE   PublicHTTPErrorType = "CHAIN_UNAVAILABLE"
	PublicHTTPErrorTypeVAULTLOCKED        PublicHTTPErrorType = "VAULT_LOCKED"
)

// PublicHTTPError public HTTP error
type PublicHTTPError struct {
	// HTTP status code returned for the error
	// Required: true
	Code *int64 `json:"status"`

	// More detailed, human-readable, optional explanation of the error
	Detail string `json:"detail,omitempty"`

	// Short, human-readable description of the error
	// Required: true
	Title *string `json:"title"`

	// type
	// Required: true
	Type *PublicHTTPErrorType `json:"type"`
}

// Validate validates this public HTTP error
func (m *PublicHTTPError) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("status", "body", m.Code); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("title", "body", m.Title); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("type", "body", m.Type); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// HTTPValidationErrorDetail HTTP validation error detail
type HTTPValidationErrorDetail struct {
	// Error describing field validation failure
	// Required: true
	Error *string `json:"error"`

	// Indicates how the invalid field was provided
	// Required: true
	In *string `json:"in"`

	// Key of field failing validation
	// Required: true
	Key *string `json:"key"`
}

// PublicHTTPValidationError public HTTP validation error
type PublicHTTPValidationError struct {
	PublicHTTPError

	// List of errors received while validating payload against schema
	// Required: true
	ValidationErrors []*HTTPValidationErrorDetail `json:"validationErrors"`
}

// Validate validates this public HTTP validation error
func (m *PublicHTTPValidationError) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.PublicHTTPError.Validate(formats); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("validationErrors", "body", m.ValidationErrors); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
