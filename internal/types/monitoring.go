package types

import (
	"strconv"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/validate"
)

var startPointEnum = []interface{}{"current", "start", "last"}

// PostMonitoringPayload post monitoring payload
type PostMonitoringPayload struct {
	// Where detectors begin scanning: current, start or last
	// Enum: [current start last]
	StartPoint string `json:"startPoint,omitempty"`
}

// Validate validates this post monitoring payload
func (m *PostMonitoringPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validateStartPoint(m.StartPoint); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PostChainMonitoringPayload post chain monitoring payload
type PostChainMonitoringPayload struct {
	// Required: true
	Chain *string `json:"chain"`

	// Required: true
	Network *string `json:"network"`

	// Enum: [current start last]
	StartPoint string `json:"startPoint,omitempty"`

	// Explicit first height to scan, overrides startPoint
	// Minimum: 0
	StartBlock *int64 `json:"startBlock,omitempty"`
}

// Validate validates this post chain monitoring payload
func (m *PostChainMonitoringPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validateChainPair(m.Chain, m.Network); err != nil {
		res = append(res, err...)
	}

	if err := validateStartPoint(m.StartPoint); err != nil {
		res = append(res, err)
	}

	if m.StartBlock != nil {
		if err := validate.MinimumInt("startBlock", "body", *m.StartBlock, 0, false); err != nil {
			res = append(res, err)
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// PostSetStartBlockPayload post set start block payload
type PostSetStartBlockPayload struct {
	// Required: true
	Chain *string `json:"chain"`

	// Required: true
	Network *string `json:"network"`

	// Required: true
	// Minimum: 0
	StartBlock *int64 `json:"startBlock"`
}

// Validate validates this post set start block payload
func (m *PostSetStartBlockPayload) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validateChainPair(m.Chain, m.Network); err != nil {
		res = append(res, err...)
	}

	if err := validate.Required("startBlock", "body", m.StartBlock); err != nil {
		res = append(res, err)
	} else if err := validate.MinimumInt("startBlock", "body", *m.StartBlock, 0, false); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// MonitoringActionResponse monitoring action response
type MonitoringActionResponse struct {
	// Required: true
	Success *bool `json:"success"`

	// Required: true
	Message *string `json:"message"`
}

// Validate validates this monitoring action response
func (m *MonitoringActionResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("success", "body", m.Success); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("message", "body", m.Message); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// ChainBlocksResponse chain blocks response, keyed by "<chain>_<network>"
type ChainBlocksResponse struct {
	// Live head per pair, null when the node is unavailable
	// Required: true
	CurrentBlocks map[string]*int64 `json:"currentBlocks"`

	// Operator configured start heights
	// Required: true
	SavedBlocks map[string]int64 `json:"savedBlocks"`

	// Highest fully processed heights
	// Required: true
	LastProcessedBlocks map[string]int64 `json:"lastProcessedBlocks"`
}

// Validate validates this chain blocks response
func (m *ChainBlocksResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if m.CurrentBlocks == nil {
		res = append(res, errors.Required("currentBlocks", "body", nil))
	}

	if m.SavedBlocks == nil {
		res = append(res, errors.Required("savedBlocks", "body", nil))
	}

	if m.LastProcessedBlocks == nil {
		res = append(res, errors.Required("lastProcessedBlocks", "body", nil))
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// MonitoringStatusResponse monitoring status response
type MonitoringStatusResponse struct {
	// True while at least one pair is being monitored
	// Required: true
	IsMonitoring *bool `json:"isMonitoring"`

	// Running flag per "<chain>_<network>"
	// Required: true
	Chains map[string]bool `json:"chains"`
}

// Validate validates this monitoring status response
func (m *MonitoringStatusResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("isMonitoring", "body", m.IsMonitoring); err != nil {
		res = append(res, err)
	}

	if m.Chains == nil {
		res = append(res, errors.Required("chains", "body", nil))
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// ChainStatus chain status
type ChainStatus struct {
	// Required: true
	Key *string `json:"key"`

	// Required: true
	Blockchain *string `json:"blockchain"`

	// Required: true
	Network *string `json:"network"`

	// Required: true
	Running *bool `json:"running"`

	// One of running, connection_error, stopped
	// Required: true
	State *string `json:"state"`

	LastError string `json:"lastError,omitempty"`

	LastHeight *int64 `json:"lastHeight,omitempty"`
}

// ChainStatusResponse chain status response
type ChainStatusResponse struct {
	// Required: true
	Chains []*ChainStatus `json:"chains"`
}

// Validate validates this chain status response
func (m *ChainStatusResponse) Validate(_ strfmt.Registry) error {
	var res []error

	if err := validate.Required("chains", "body", m.Chains); err != nil {
		res = append(res, err)
	}

	for i, c := range m.Chains {
		if c == nil {
			continue
		}
		if c.Key == nil || c.Blockchain == nil || c.Network == nil || c.Running == nil || c.State == nil {
			res = append(res, errors.Required("chains."+strconv.Itoa(i), "body", nil))
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func validateStartPoint(startPoint string) error {
	if startPoint == "" {
		return nil
	}

	if err := validate.EnumCase("startPoint", "body", startPoint, startPointEnum, true); err != nil {
		return err
	}

	return nil
}

func validateChainPair(chain *string, network *string) []error {
	var res []error

	if err := validate.Required("chain", "body", chain); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("chain", "body", *chain, 1); err != nil {
		res = append(res, err)
	}

	if err := validate.Required("network", "body", network); err != nil {
		res = append(res, err)
	} else if err := validate.MinLength("network", "body", *network, 1); err != nil {
		res = append(res, err)
	}

	return res
}
