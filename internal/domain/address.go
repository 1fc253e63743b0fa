package domain

import (
	"strings"
	"time"
)

type Address struct {
	ID            string
	UserID        string
	RecipientName string
	PostalCode    string
	Street        string
	Number        string
	Complement    string
	District      string
	City          string
	State         string
	IsDefault     bool
	CreatedAt     time.Time
}

// AddressSnapshot is the copy of the delivery address stored on the order
// itself so later address book edits never change a placed order.
type AddressSnapshot struct {
	RecipientName string `json:"recipient_name"`
	PostalCode    string `json:"postal_code"`
	Street        string `json:"street"`
	Number        string `json:"number"`
	Complement    string `json:"complement,omitempty"`
	District      string `json:"district"`
	City          string `json:"city"`
	State         string `json:"state"`
}

func (a AddressSnapshot) Validate() error {
	missing := make([]string, 0)
	if strings.TrimSpace(a.RecipientName) == "" {
		missing = append(missing, "recipient_name")
	}
	if strings.TrimSpace(a.Street) == "" {
		missing = append(missing, "street")
	}
	if strings.TrimSpace(a.Number) == "" {
		missing = append(missing, "number")
	}
	if strings.TrimSpace(a.District) == "" {
		missing = append(missing, "district")
	}
	if strings.TrimSpace(a.City) == "" {
		missing = append(missing, "city")
	}
	if len(missing) > 0 {
		return Validation("address is missing %s", strings.Join(missing, ", "))
	}
	if len(strings.TrimSpace(a.State)) != 2 {
		return Validation("address state must be a two-letter code")
	}
	if _, err := NormalizePostalCode(a.PostalCode); err != nil {
		return err
	}
	return nil
}

// NormalizePostalCode strips punctuation from a CEP and checks it has 8 digits.
func NormalizePostalCode(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '.' || r == ' ':
		default:
			return "", Validation("postal code %q is malformed", raw)
		}
	}
	if b.Len() != 8 {
		return "", Validation("postal code %q must have 8 digits", raw)
	}
	return b.String(), nil
}

// NewOrderAddress builds the address row created for a single order.
func NewOrderAddress(id, userID string, s AddressSnapshot, now time.Time) *Address {
	cep, _ := NormalizePostalCode(s.PostalCode)
	return &Address{
		ID:            id,
		UserID:        userID,
		RecipientName: strings.TrimSpace(s.RecipientName),
		PostalCode:    cep,
		Street:        strings.TrimSpace(s.Street),
		Number:        strings.TrimSpace(s.Number),
		Complement:    strings.TrimSpace(s.Complement),
		District:      strings.TrimSpace(s.District),
		City:          strings.TrimSpace(s.City),
		State:         strings.ToUpper(strings.TrimSpace(s.State)),
		CreatedAt:     now,
	}
}

func (a *Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		RecipientName: a.RecipientName,
		PostalCode:    a.PostalCode,
		Street:        a.Street,
		Number:        a.Number,
		Complement:    a.Complement,
		District:      a.District,
		City:          a.City,
		State:         a.State,
	}
}
