package sso

import (
	"testing"

	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tesorio/saml2auth/pkg/config"
)

func testMapping() config.AttributeMapConfig {
	return config.AttributeMapConfig{
		Email:     "Email",
		Username:  "UserName",
		FirstName: "FirstName",
		LastName:  "LastName",
	}
}

func assertionWith(attrs map[string][]string) *saml2.AssertionInfo {
	values := saml2.Values{}
	for name, vals := range attrs {
		attr := types.Attribute{Name: name}
		for _, v := range vals {
			attr.Values = append(attr.Values, types.AttributeValue{Value: v})
		}
		values[name] = attr
	}
	return &saml2.AssertionInfo{
		NameID: "user@example.com",
		Values: values,
	}
}

func TestExtractClaims(t *testing.T) {
	info := assertionWith(map[string][]string{
		"Email":      {"alice@example.com"},
		"UserName":   {"alice"},
		"FirstName":  {"Alice"},
		"LastName":   {"Smith"},
		"Department": {"Engineering", "Platform"},
	})

	claims, err := ExtractClaims(info, testMapping())
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, "Alice", claims.FirstName)
	assert.Equal(t, "Smith", claims.LastName)
	assert.Equal(t, []string{"Engineering", "Platform"}, claims.Raw["Department"])
}

func TestExtractClaimsTakesFirstValue(t *testing.T) {
	info := assertionWith(map[string][]string{
		"Email": {"primary@example.com", "secondary@example.com"},
	})

	claims, err := ExtractClaims(info, testMapping())
	require.NoError(t, err)
	assert.Equal(t, "primary@example.com", claims.Email)
	assert.Len(t, claims.Raw["Email"], 2)
}

func TestExtractClaimsMissingEmail(t *testing.T) {
	info := assertionWith(map[string][]string{
		"UserName": {"alice"},
	})

	_, err := ExtractClaims(info, testMapping())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingRequiredAttribute)
	assert.Contains(t, err.Error(), "Email")
}

func TestExtractClaimsEmptyEmailValue(t *testing.T) {
	info := assertionWith(map[string][]string{
		"Email": {""},
	})

	_, err := ExtractClaims(info, testMapping())
	assert.ErrorIs(t, err, ErrMissingRequiredAttribute)
}

func TestExtractClaimsNilAssertion(t *testing.T) {
	_, err := ExtractClaims(nil, testMapping())
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestExtractClaimsEmptyAttributeSet(t *testing.T) {
	info := &saml2.AssertionInfo{NameID: "user@example.com"}
	_, err := ExtractClaims(info, testMapping())
	assert.ErrorIs(t, err, ErrMissingIdentity)
}

func TestExtractClaimsOptionalFieldsMayBeAbsent(t *testing.T) {
	info := assertionWith(map[string][]string{
		"Email": {"bob@example.com"},
	})

	claims, err := ExtractClaims(info, testMapping())
	require.NoError(t, err)
	assert.Empty(t, claims.Username)
	assert.Empty(t, claims.FirstName)
	assert.Empty(t, claims.LastName)
}

func TestExtractClaimsCustomMapping(t *testing.T) {
	info := assertionWith(map[string][]string{
		"urn:oid:0.9.2342.19200300.100.1.3": {"carol@example.com"},
	})

	mapping := config.AttributeMapConfig{Email: "urn:oid:0.9.2342.19200300.100.1.3"}
	claims, err := ExtractClaims(info, mapping)
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", claims.Email)
}
