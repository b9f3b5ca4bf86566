package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

var feeOptionEnum = []interface{}{"same", "higher"}

// SweepTransaction sweep transaction
type SweepTransaction struct {
	// Required: true
	// Format: uuid
	ID *strfmt.UUID `json:"id"`

	// Required: true
	// Format: uuid
	DepositID *strfmt.UUID `json:"depositId"`

	// Required: true
	// Format: uuid
	FromWalletID *strfmt.UUID `json:"fromWalletId"`

	// Format: uuid
	ToAdminWalletID *strfmt.UUID `json:"toAdminWalletId,omitempty"`

	TxHash string `json:"txHash,omitempty"`

	// Required: true
	Amount *string `json:"amount"`

	// Amount scaled by token decimals
	AmountDecimal string `json:"amountDecimal,omitempty"`

	// Fee parameter used for the attempt (chain specific unit)
	Fee string `json:"fee,omitempty"`

	// Required: true
	// Enum: [pending completed failed skipped]
	Status *string `json:"status"`

	Message string `json:"message,omitempty"`

	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`

	TokenID string `json:"tokenId,omitempty"`

	// Required: true
	Attempt *int64 `json:"attempt"`

	// Required: true
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"createdAt"`

	// Required: true
	// Format: date-time
	UpdatedAt *strfmt.DateTime `json:"updatedAt"`
}

// Validate validates this sweep transaction
func (m *SweepTransaction) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("id", "body", m.ID); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("depositId", "body", m.DepositID); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("fromWalletId", "body", m.FromWalletID); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("amount", "body", m.Amount); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("status", "body", m.Status); err != nil {
		res = append(res, err)
	} else if err := validate.EnumCase("status", "body", *m.Status, []interface{}{"pending", "completed", "failed", "skipped"}, true); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("blockchain", "body", m.Blockchain); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("network", "body", m.Network); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("attempt", "body", m.Attempt); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("createdAt", "body", m.CreatedAt); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("updatedAt", "body", m.UpdatedAt); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// GetSweepTransactionsResponse get sweep transactions response
type GetSweepTransactionsResponse struct {
	// Required: true
	Items []*SweepTransaction `json:"items"`

	// Required: true
	Total *int64 `json:"total"`

	// Required: true
	Offset *int64 `json:"offset"`

	// Required: true
	Limit *int64 `json:"limit"`
}

// Validate validates this get sweep transactions response
func (m *GetSweepTransactionsResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("items", "body", m.Items); err != nil {
		res = append(res, err)
	}

	for _, item := range m.Items {
		if item == nil {
			continue
		}
		if err := item.Validate(formats); err != nil {
			res = append(res, err)
		}
	}

	if err := validate.Required("total", "body", m.Total); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("offset", "body", m.Offset); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("limit", "body", m.Limit); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PostRetrySweepPayload post retry sweep payload
type PostRetrySweepPayload struct {
	// Required: true
	// Enum: [same higher]
	FeeOption *string `json:"feeOption"`
}

// Validate validates this post retry sweep payload
func (m *PostRetrySweepPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("feeOption", "body", m.FeeOption); err != nil {
		res = append(res, err)
	} else if err := validate.EnumCase("feeOption", "body", *m.FeeOption, feeOptionEnum, true); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
