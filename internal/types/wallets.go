package types

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

var poolWalletTypeEnum = []interface{}{"admin", "gasTank"}

// PostPoolWalletPayload post pool wallet payload
type PostPoolWalletPayload struct {
	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`

	// Pool wallet kind, defaults to the kind of the endpoint
	// Enum: [admin gasTank]
	Type string `json:"type,omitempty"`
}

// Validate validates this post pool wallet payload
func (m *PostPoolWalletPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("blockchain", "body", m.Blockchain); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("blockchain", "body", *m.Blockchain, 1); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("network", "body", m.Network); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("network", "body", *m.Network, 1); err != nil {
		res = append(res, err)
	}

	if m.Type != "" {
		if err := validate.EnumCase("type", "body", m.Type, poolWalletTypeEnum, true); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PoolWallet pool wallet
type PoolWallet struct {
	// Required: true
	// Format: uuid
	ID *strfmt.UUID `json:"id"`

	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`

	// Required: true
	Address *string `json:"address"`

	// Required: true
	Type *string `json:"type"`

	// Required: true
	Status *string `json:"status"`

	Memo string `json:"memo,omitempty"`

	// Required: true
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"createdAt"`
}

// Validate validates this pool wallet
func (m *PoolWallet) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("id", "body", m.ID); err != nil {
		res = append(res, err)
	} else if err := validate.FormatOf("id", "body", "uuid", m.ID.String(), formats); err != nil {
		res = append(res, err)
	}

	for name, v := range map[string]*string{
		"blockchain": m.Blockchain,
		"network":    m.Network,
		"address":    m.Address,
		"type":       m.Type,
		"status":     m.Status,
	} {
		if err := validate.Required(name, "body", v); err != nil {
			res = append(res, err)
		}
	}

	if err := validate.Required("createdAt", "body", m.CreatedAt); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// GetPoolWalletsResponse get pool wallets response
type GetPoolWalletsResponse struct {
	// Required: true
	Wallets []*PoolWallet `json:"wallets"`
}

// Validate validates this get pool wallets response
func (m *GetPoolWalletsResponse) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.Required("wallets", "body", m.Wallets); err != nil {
		res = append(res, err)
	}

	for _, w := range m.Wallets {
		if w == nil {
			continue
		}
		if err := w.Validate(formats); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// ChainPair chain pair
type ChainPair struct {
	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`
}

// MissingPoolWalletsResponse missing pool wallets response
type MissingPoolWalletsResponse struct {
	// Required: true
	Missing []*ChainPair `json:"missing"`
}

// Validate validates this missing pool wallets response
func (m *MissingPoolWalletsResponse) Validate(_ strfmt.Registry) error {
	if err := validate.Required("missing", "body", m.Missing); err != nil {
		return errors.CompositeValidationError(err)
	}
	return nil
}

// GasTankBalanceResponse gas tank balance response
type GasTankBalanceResponse struct {
	// Required: true
	// Format: uuid
	WalletID *strfmt.UUID `json:"walletId"`

	// Required: true
	Address *string `json:"address"`

	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`

	// Native asset symbol
	Symbol string `json:"symbol,omitempty"`

	// Balance in the smallest unit
	// Required: true
	Balance *string `json:"balance"`

	// Balance scaled by the native decimals
	// Required: true
	BalanceDecimal *string `json:"balanceDecimal"`
}

// Validate validates this gas tank balance response
func (m *GasTankBalanceResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("walletId", "body", m.WalletID); err != nil {
		res = append(res, err)
	}

	for name, v := range map[string]*string{
		"address":        m.Address,
		"blockchain":     m.Blockchain,
		"network":        m.Network,
		"balance":        m.Balance,
		"balanceDecimal": m.BalanceDecimal,
	} {
		if err := validate.Required(name, "body", v); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PostDecryptKeyPayload post decrypt key payload
type PostDecryptKeyPayload struct {
	// Required: true
	// Format: password
	AdminPassword *strfmt.Password `json:"adminPassword"`

	// Required: true
	// Format: password
	AdminSecretKey *strfmt.Password `json:"adminSecretKey"`
}

// Validate validates this post decrypt key payload
func (m *PostDecryptKeyPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("adminPassword", "body", m.AdminPassword); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("adminSecretKey", "body", m.AdminSecretKey); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// DecryptKeyResponse decrypt key response
type DecryptKeyResponse struct {
	// Required: true
	// Format: uuid
	WalletID *strfmt.UUID `json:"walletId"`

	// Required: true
	Address *string `json:"address"`

	// Required: true
	PrivateKey *string `json:"privateKey"`

	// Required: true
	ExpiresInSeconds *int64 `json:"expiresInSeconds"`

	// Required: true
	// Format: date-time
	ExpiresAt *strfmt.DateTime `json:"expiresAt"`
}

// Validate validates this decrypt key response
func (m *DecryptKeyResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("walletId", "body", m.WalletID); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("address", "body", m.Address); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("privateKey", "body", m.PrivateKey); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("expiresInSeconds", "body", m.ExpiresInSeconds); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("expiresAt", "body", m.ExpiresAt); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}
