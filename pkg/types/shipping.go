package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ShippingInfo is the delivery destination captured at checkout. It is
// persisted as a JSON column so the snapshot survives later edits to the
// buyer's saved addresses.
type ShippingInfo struct {
	RecipientName string  `json:"recipient_name"`
	Phone         string  `json:"phone"`
	Line1         string  `json:"line1"`
	Line2         *string `json:"line2,omitempty"`
	City          string  `json:"city"`
	Province      string  `json:"province"`
	PostalCode    string  `json:"postal_code"`
	Country       string  `json:"country"`
	Notes         *string `json:"notes,omitempty"`
}

func (s ShippingInfo) Validate() error {
	if strings.TrimSpace(s.RecipientName) == "" {
		return fmt.Errorf("shipping: missing recipient_name")
	}
	if strings.TrimSpace(s.Phone) == "" {
		return fmt.Errorf("shipping: missing phone")
	}
	if strings.TrimSpace(s.Line1) == "" {
		return fmt.Errorf("shipping: missing line1")
	}
	if strings.TrimSpace(s.City) == "" {
		return fmt.Errorf("shipping: missing city")
	}
	return nil
}

func (s ShippingInfo) Value() (driver.Value, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("shipping: marshal %w", err)
	}
	return string(raw), nil
}

func (s *ShippingInfo) Scan(value interface{}) error {
	if value == nil {
		*s = ShippingInfo{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("shipping: unsupported scan type %T", value)
	}

	if len(raw) == 0 {
		*s = ShippingInfo{}
		return nil
	}
	if err := json.Unmarshal(raw, s); err != nil {
		return fmt.Errorf("shipping: unmarshal %w", err)
	}
	return nil
}
