/*
Package security encrypts controller credentials at rest.

Passwords kept in the provider store are sealed with AES-256-GCM under a
key derived from a passphrase (NSX_SECRET_KEY). A sealed string carries
the "enc:v1:" prefix followed by the base64 of nonce and ciphertext:

	sm, err := security.NewSecretsManagerFromPassword(passphrase)
	sealed, err := sm.SealString("admin-password")
	plain, err := sm.OpenString(sealed)

Strings without the prefix pass through OpenString untouched.
*/
package security
