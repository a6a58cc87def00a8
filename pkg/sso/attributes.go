package sso

import (
	"fmt"

	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"

	"github.com/Tesorio/saml2auth/pkg/config"
	"github.com/Tesorio/saml2auth/pkg/identity"
)

// ExtractClaims maps a validated assertion's attributes to identity
// claims using the configured logical-to-raw name mapping. Each mapped
// field takes the first value of its attribute; unknown attributes are
// tolerated and preserved in Claims.Raw. An absent or empty email is
// ErrMissingRequiredAttribute.
func ExtractClaims(info *saml2.AssertionInfo, mapping config.AttributeMapConfig) (identity.Claims, error) {
	if info == nil || len(info.Values) == 0 {
		return identity.Claims{}, ErrMissingIdentity
	}

	raw := make(map[string][]string, len(info.Values))
	for name, attr := range info.Values {
		values := make([]string, 0, len(attr.Values))
		for _, v := range attr.Values {
			values = append(values, v.Value)
		}
		raw[name] = values
	}

	claims := identity.Claims{
		Email:     firstValue(info.Values, mapping.Email),
		Username:  firstValue(info.Values, mapping.Username),
		FirstName: firstValue(info.Values, mapping.FirstName),
		LastName:  firstValue(info.Values, mapping.LastName),
		Raw:       raw,
	}

	if claims.Email == "" {
		return identity.Claims{}, fmt.Errorf("%w: %s", ErrMissingRequiredAttribute, mapping.Email)
	}
	return claims, nil
}

func firstValue(values map[string]types.Attribute, name string) string {
	attr, ok := values[name]
	if !ok || len(attr.Values) == 0 {
		return ""
	}
	return attr.Values[0].Value
}
