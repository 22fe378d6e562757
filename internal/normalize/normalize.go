// Package normalize canonicalizes raw contact handles into comparable keys.
//
// Every function here is pure: the same input and options always produce the
// same output, and no global state is consulted. Identity matching depends on
// that, since normalization is the only basis for merging handles.
package normalize

import (
	"strings"

	"github.com/nyaruka/phonenumbers"

	"github.com/scrypster/contactgraph/pkg/types"
)

// minPhoneDigits is the fewest digits a phone handle may carry.
const minPhoneDigits = 7

// ituPrefix is the international call prefix recommended by ITU-T E.164 and
// dialled in most countries. It is recognized under every policy.
const ituPrefix = "00"

// PhoneOptions is the phone normalization policy.
//
// Numbers written with a leading "+" are already international. For other
// numbers the rules are applied in order:
//  1. a leading InternationalPrefix or "00" is replaced by "+"
//  2. a leading TrunkPrefix followed by a national number is replaced by
//     "+" + DefaultCountryCode
//  3. a bare national number of NationalNumberLength digits gets
//     "+" + DefaultCountryCode
//
// Anything else is kept as unqualified digits. Qualified numbers are then
// formatted as E.164, which drops a national trunk prefix written after the
// country code.
type PhoneOptions struct {
	DefaultCountryCode   string `yaml:"default_country_code"`
	InternationalPrefix  string `yaml:"international_prefix"`
	TrunkPrefix          string `yaml:"trunk_prefix"`
	NationalNumberLength int    `yaml:"national_number_length"` // 0 accepts any length for rule 2 and disables rule 3
}

// DefaultPhoneOptions follows the North American Numbering Plan.
var DefaultPhoneOptions = PhoneOptions{
	DefaultCountryCode:   "1",
	InternationalPrefix:  "011",
	TrunkPrefix:          "1",
	NationalNumberLength: 10,
}

// Normalizer applies a fixed phone policy. The zero value uses no country
// code heuristics at all.
type Normalizer struct {
	Phone PhoneOptions
}

// New returns a Normalizer with the given phone policy.
func New(phone PhoneOptions) Normalizer {
	return Normalizer{Phone: phone}
}

// NormalizeEmail normalizes an email address.
func NormalizeEmail(raw string) (types.Handle, error) {
	return Normalizer{}.Email(raw)
}

// NormalizePhone normalizes a phone number with DefaultPhoneOptions.
func NormalizePhone(raw string) (types.Handle, error) {
	return New(DefaultPhoneOptions).PhoneNumber(raw)
}

// Normalize dispatches on the handle kind.
func (n Normalizer) Normalize(h types.RawHandle) (types.Handle, error) {
	switch h.Kind {
	case types.HandleEmail:
		return n.Email(h.Value)
	case types.HandlePhone:
		return n.PhoneNumber(h.Value)
	}
	return types.Handle{}, invalid(h.Kind, h.Value, "unknown handle kind")
}

// Email strips surrounding whitespace and lower-cases the whole address. The
// result must contain exactly one "@" with non-empty text on both sides.
func (n Normalizer) Email(raw string) (types.Handle, error) {
	value := strings.ToLower(strings.TrimSpace(raw))

	if strings.Count(value, "@") != 1 {
		return types.Handle{}, invalid(types.HandleEmail, raw, "must contain exactly one @")
	}
	local, domain, _ := strings.Cut(value, "@")
	if local == "" || domain == "" {
		return types.Handle{}, invalid(types.HandleEmail, raw, "empty local part or domain")
	}

	return types.Handle{Kind: types.HandleEmail, Value: value, Raw: raw}, nil
}

// PhoneNumber strips punctuation and qualifies the number with a country code
// where the policy allows it.
func (n Normalizer) PhoneNumber(raw string) (types.Handle, error) {
	s := strings.TrimSpace(raw)
	international := strings.HasPrefix(s, "+")
	if international {
		// "+44 (0)20 ..." writes the trunk prefix that must not be dialled.
		s = strings.ReplaceAll(s, "(0)", "")
	}

	digits := digitsOf(s)
	if len(digits) < minPhoneDigits {
		return types.Handle{}, invalid(types.HandlePhone, raw, "fewer than 7 digits")
	}

	value := "+" + digits
	if !international {
		value = n.Phone.qualify(digits)
	}
	if strings.HasPrefix(value, "+") {
		num, err := phonenumbers.Parse(value, "")
		if err != nil {
			return types.Handle{}, invalid(types.HandlePhone, raw, err.Error())
		}
		value = phonenumbers.Format(num, phonenumbers.E164)
		if len(value)-1 < minPhoneDigits {
			return types.Handle{}, invalid(types.HandlePhone, raw, "fewer than 7 digits")
		}
	}

	return types.Handle{Kind: types.HandlePhone, Value: value, Raw: raw}, nil
}

func (o PhoneOptions) qualify(digits string) string {
	for _, p := range []string{o.InternationalPrefix, ituPrefix} {
		if p != "" && strings.HasPrefix(digits, p) && len(digits)-len(p) >= minPhoneDigits {
			return "+" + digits[len(p):]
		}
	}
	if o.DefaultCountryCode == "" {
		return digits
	}
	if p := o.TrunkPrefix; p != "" && strings.HasPrefix(digits, p) {
		national := digits[len(p):]
		if o.nationalLength(national) {
			return "+" + o.DefaultCountryCode + national
		}
	}
	if o.NationalNumberLength > 0 && len(digits) == o.NationalNumberLength {
		return "+" + o.DefaultCountryCode + digits
	}
	return digits
}

func (o PhoneOptions) nationalLength(national string) bool {
	if o.NationalNumberLength > 0 {
		return len(national) == o.NationalNumberLength
	}
	return len(national) >= minPhoneDigits
}

func digitsOf(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
