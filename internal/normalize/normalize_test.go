package normalize_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/contactgraph/internal/normalize"
	"github.com/scrypster/contactgraph/pkg/types"
)

var ukOptions = normalize.PhoneOptions{
	DefaultCountryCode:   "44",
	InternationalPrefix:  "00",
	TrunkPrefix:          "0",
	NationalNumberLength: 10,
}

func TestNormalizeEmail(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"a@foo.com", "a@foo.com"},
		{"A@Foo.com", "a@foo.com"},
		{"  Alice.Smith@Example.ORG\t", "alice.smith@example.org"},
		{"x+tag@sub.domain.io", "x+tag@sub.domain.io"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			h, err := normalize.NormalizeEmail(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, types.HandleEmail, h.Kind)
			assert.Equal(t, tt.want, h.Value)
			assert.Equal(t, tt.raw, h.Raw)
		})
	}
}

func TestNormalizeEmail_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "alice", "@foo.com", "alice@", "a@b@c.com", "a@@c.com"} {
		t.Run(raw, func(t *testing.T) {
			_, err := normalize.NormalizeEmail(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, normalize.ErrInvalidHandle))

			var ihe *normalize.InvalidHandleError
			require.True(t, errors.As(err, &ihe))
			assert.Equal(t, types.HandleEmail, ihe.Kind)
		})
	}
}

func TestNormalizeEmail_Idempotent(t *testing.T) {
	for _, raw := range []string{"A@Foo.com", " bob@EXAMPLE.com ", "c.d@e.f"} {
		first, err := normalize.NormalizeEmail(raw)
		require.NoError(t, err)
		second, err := normalize.NormalizeEmail(first.Value)
		require.NoError(t, err)
		assert.Equal(t, first.Value, second.Value)
		assert.Equal(t, first.Key(), second.Key())
	}
}

func TestNormalizePhone_Default(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"+15551234567", "+15551234567"},
		{"+1 (555) 123-4567", "+15551234567"},
		{"(555) 123-4567", "+15551234567"},
		{"1-555-123-4567", "+15551234567"},
		{"555.123.4567", "+15551234567"},
		{"011 44 20 7946 0958", "+442079460958"},
		{"+44 (0)20 7946 0958", "+442079460958"},
		{"0044 20 7946 0958", "+442079460958"},
		{"+44 020 7946 0958", "+442079460958"},
		{"555-1234", "5551234"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			h, err := normalize.NormalizePhone(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, types.HandlePhone, h.Kind)
			assert.Equal(t, tt.want, h.Value)
		})
	}
}

func TestNormalizePhone_UK(t *testing.T) {
	n := normalize.New(ukOptions)
	for _, raw := range []string{"020 7946 0958", "+44 20 7946 0958", "+44 (0)20 7946 0958", "0044 20 7946 0958"} {
		h, err := n.PhoneNumber(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, "+442079460958", h.Value, raw)
	}
}

func TestNormalizePhone_InternationalPrefixesAgree(t *testing.T) {
	for _, opts := range []normalize.PhoneOptions{normalize.DefaultPhoneOptions, ukOptions, {}} {
		n := normalize.New(opts)
		plus, err := n.PhoneNumber("+44 20 7946 0958")
		require.NoError(t, err)
		itu, err := n.PhoneNumber("0044 20 7946 0958")
		require.NoError(t, err)
		assert.Equal(t, plus.Key(), itu.Key(), "%+v", opts)
	}
}

func TestNormalizePhone_ZeroPolicyKeepsDigits(t *testing.T) {
	h, err := normalize.Normalizer{}.PhoneNumber("(555) 123-4567")
	require.NoError(t, err)
	assert.Equal(t, "5551234567", h.Value)
}

func TestNormalizePhone_Invalid(t *testing.T) {
	for _, raw := range []string{"call me!", "", "123456", "+1 23", "ext. 42", "+999 123 4567"} {
		t.Run(raw, func(t *testing.T) {
			_, err := normalize.NormalizePhone(raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, normalize.ErrInvalidHandle)
		})
	}
}

func TestNormalizePhone_Idempotent(t *testing.T) {
	for _, opts := range []normalize.PhoneOptions{normalize.DefaultPhoneOptions, ukOptions, {}} {
		n := normalize.New(opts)
		for _, raw := range []string{"+1 (555) 123-4567", "555-1234", "020 7946 0958", "0044 20 7946 0958", "1-555-123-4567"} {
			first, err := n.PhoneNumber(raw)
			require.NoError(t, err)
			second, err := n.PhoneNumber(first.Value)
			require.NoError(t, err)
			assert.Equal(t, first.Value, second.Value, "raw=%q opts=%+v", raw, opts)
		}
	}
}

func TestNormalize_Dispatch(t *testing.T) {
	n := normalize.New(normalize.DefaultPhoneOptions)

	h, err := n.Normalize(types.Email("B@X.io"))
	require.NoError(t, err)
	assert.Equal(t, "email:b@x.io", h.Key())

	h, err = n.Normalize(types.Phone("555 123 4567"))
	require.NoError(t, err)
	assert.Equal(t, "phone:+15551234567", h.Key())

	_, err = n.Normalize(types.RawHandle{Kind: "fax", Value: "5551234567"})
	assert.ErrorIs(t, err, normalize.ErrInvalidHandle)
}

func TestInvalidHandleError_RedactsRawValue(t *testing.T) {
	_, err := normalize.NormalizeEmail("secret-person-at-example.com")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "secret-person")
	assert.Contains(t, err.Error(), "sha256:")
}
