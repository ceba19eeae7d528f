package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits and an optional leading +")

	// ErrInvalidLength indicates phone number is outside the E.164 length range
	ErrInvalidLength = errors.New("phone number must have between 7 and 15 digits")
)

const (
	minDigits = 7
	maxDigits = 15
)

var digitsRegex = regexp.MustCompile(`^\d+$`)

var separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")

// PhoneValidator validates international phone numbers
type PhoneValidator struct{}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator() *PhoneValidator {
	return &PhoneValidator{}
}

// Validate accepts numbers such as "+91 98123 45678" or "098-123-4567"
// and returns them with separators removed. A leading + is kept.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)
	digits := strings.TrimPrefix(sanitized, "+")
	if !digitsRegex.MatchString(digits) {
		return "", ErrInvalidFormat
	}
	if len(digits) < minDigits || len(digits) > maxDigits {
		return "", ErrInvalidLength
	}
	return sanitized, nil
}

// Sanitize removes common separators
func (v *PhoneValidator) Sanitize(phone string) string {
	return separators.Replace(strings.TrimSpace(phone))
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}
