// Package config loads and validates saml2auth configuration from
// environment variables.
//
// All variables use the SAML2AUTH_ prefix. The SAML section mirrors the
// settings an IdP integration needs: a metadata source (inline XML or a
// remote URL), an attribute-name map, the default post-login URL, and the
// optional new-user profile used when auto-provisioning is enabled.
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
package config
