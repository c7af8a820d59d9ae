package models

// User represents a registered student account.
type User struct {
	// ID is the normalized student id (trimmed, full-width characters
	// folded to half-width, upper-cased). Unique, immutable after
	// registration.
	ID string `json:"id"`

	// Name is the display name captured at registration. Names are not
	// editable in-app, so denormalized copies on records stay accurate.
	Name string `json:"name"`

	// CredentialDigest is a checksum of the account password, hex-encoded.
	// It is NOT a cryptographic hash; the account system here is a
	// partitioning convenience, not a security boundary. Empty when the
	// deployment runs without credentials.
	CredentialDigest string `json:"credentialDigest,omitempty"`

	// RegisteredAt is the Unix timestamp when the account was created.
	RegisteredAt int64 `json:"registeredAt"`
}
