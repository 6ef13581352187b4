package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrFieldTooLong    = errors.New("profile field exceeds maximum length")
	ErrPasswordTooWeak = errors.New("password must be at least 8 characters")
)

// MaxFieldLength bounds every free-text profile field.
const MaxFieldLength = 255

// MinPasswordLength is enforced at registration.
const MinPasswordLength = 8

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Email represents a validated, lower-cased email address.
type Email struct {
	value string
}

// NewEmail creates a validated email address.
func NewEmail(value string) (Email, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || !emailRegex.MatchString(value) {
		return Email{}, ErrInvalidEmail
	}
	return Email{value: value}, nil
}

func (e Email) String() string { return e.value }

// Equals checks if two emails are equal.
func (e Email) Equals(other Email) bool {
	return e.value == other.value
}

// Profile is the personal and billing data attached to a user. Country
// selects the tax rate applied to the user's invoices.
type Profile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	TaxID      string `json:"tax_id"`
	Company    string `json:"company"`
}

// Normalize trims every field and checks lengths.
func (p Profile) Normalize() (Profile, error) {
	fields := []*string{&p.FirstName, &p.LastName, &p.Phone, &p.Address, &p.City,
		&p.PostalCode, &p.Country, &p.TaxID, &p.Company}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
		if len(*f) > MaxFieldLength {
			return Profile{}, ErrFieldTooLong
		}
	}
	return p, nil
}

// FullName joins first and last name.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
