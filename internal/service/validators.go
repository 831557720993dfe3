package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var canonicalMSISDN = regexp.MustCompile(`^254[17][0-9]{8}$`)

// Field limits imposed by the gateway
const (
	maxAccountReferenceLen = 12
	maxTransactionDescLen  = 13
	maxDisbursementRefLen  = 64
	maxRemarksLen          = 100
	defaultDescription     = "Payment"
)

// Disbursement command types
const (
	CommandBusinessPayment  = "BusinessPayment"
	CommandSalaryPayment    = "SalaryPayment"
	CommandPromotionPayment = "PromotionPayment"
)

// NormalizeMSISDN converts local and international spellings of a subscriber
// number into the canonical 2547XXXXXXXX / 2541XXXXXXXX form.
func NormalizeMSISDN(raw string) (string, error) {
	s := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "+")

	switch {
	case len(s) == 10 && strings.HasPrefix(s, "0"):
		s = "254" + s[1:]
	case len(s) == 9 && (s[0] == '7' || s[0] == '1'):
		s = "254" + s
	}

	if !canonicalMSISDN.MatchString(s) {
		return "", &ValidationError{
			Field:   "phone_number",
			Code:    ErrCodeInvalidAddress,
			Message: fmt.Sprintf("%q is not a valid subscriber number", raw),
		}
	}
	return s, nil
}

// ValidateAmount checks that an amount is a positive count of minor units
func ValidateAmount(amountMinor int64) error {
	if amountMinor <= 0 {
		return &ValidationError{
			Field:   "amount",
			Code:    ErrCodeInvalidAmount,
			Message: "must be greater than 0",
		}
	}
	return nil
}

// AmountCodec converts between ledger minor units and gateway amounts.
// The gateway only accepts whole currency units.
type AmountCodec struct {
	Exponent int32
}

// ToWire renders a minor-unit amount as the gateway's integer amount.
func (c AmountCodec) ToWire(amountMinor int64) (json.Number, error) {
	if err := ValidateAmount(amountMinor); err != nil {
		return "", err
	}
	units := decimal.New(amountMinor, -c.Exponent)
	if !units.IsInteger() {
		return "", &ValidationError{
			Field:   "amount",
			Code:    ErrCodeInvalidAmount,
			Message: fmt.Sprintf("%s is not a whole currency amount", units.String()),
		}
	}
	return json.Number(units.String()), nil
}

// FromWire parses a gateway amount ("500", "1.00", 500) into minor units.
func (c AmountCodec) FromWire(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	minor := d.Shift(c.Exponent)
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %q has more precision than the currency allows", s)
	}
	return minor.IntPart(), nil
}

// ValidateAccountReference checks a push account reference
func ValidateAccountReference(ref string) error {
	n := utf8.RuneCountInString(ref)
	if n == 0 || n > maxAccountReferenceLen {
		return &ValidationError{
			Field:   "reference",
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("must be 1-%d characters", maxAccountReferenceLen),
		}
	}
	return nil
}

// NormalizeDescription applies the default description and checks its length
func NormalizeDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if desc == "" {
		return defaultDescription, nil
	}
	if utf8.RuneCountInString(desc) > maxTransactionDescLen {
		return "", &ValidationError{
			Field:   "description",
			Code:    ErrCodeInvalidDescription,
			Message: fmt.Sprintf("must be at most %d characters", maxTransactionDescLen),
		}
	}
	return desc, nil
}

// ValidateDisbursementReference checks the caller's idempotency reference
func ValidateDisbursementReference(ref string) error {
	n := utf8.RuneCountInString(ref)
	if n == 0 || n > maxDisbursementRefLen {
		return &ValidationError{
			Field:   "reference",
			Code:    ErrCodeInvalidReference,
			Message: fmt.Sprintf("must be 1-%d characters", maxDisbursementRefLen),
		}
	}
	return nil
}

// ValidateRemarks checks the free text sent with a disbursement
func ValidateRemarks(field, text string, required bool) error {
	n := utf8.RuneCountInString(text)
	if required && n == 0 {
		return &ValidationError{Field: field, Code: ErrCodeInvalidDescription, Message: "is required"}
	}
	if n > maxRemarksLen {
		return &ValidationError{
			Field:   field,
			Code:    ErrCodeInvalidDescription,
			Message: fmt.Sprintf("must be at most %d characters", maxRemarksLen),
		}
	}
	return nil
}

// ValidateCommandID checks a disbursement command type
func ValidateCommandID(commandID string) error {
	switch commandID {
	case CommandBusinessPayment, CommandSalaryPayment, CommandPromotionPayment:
		return nil
	default:
		return &ValidationError{
			Field:   "command_id",
			Code:    ErrCodeInvalidCommand,
			Message: fmt.Sprintf("%q is not one of BusinessPayment, SalaryPayment, PromotionPayment", commandID),
		}
	}
}
