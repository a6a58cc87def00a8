// Package identity maps SAML assertion claims onto local user accounts.
//
// The Resolver implements the account-matching policy: users are looked up
// by email, case-insensitively, and an unmatched login either fails or
// provisions a new account depending on configuration. Provisioning is off
// by default, so an identity provider cannot mint accounts unless the
// deployment explicitly opts in.
//
// Hooks allow deployments to run code when an account is created and before
// every login. Hooks run synchronously and a hook error aborts the login.
package identity
