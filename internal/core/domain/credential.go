package domain

// Credential is a public-key authenticator registration bound to exactly one
// user. The opaque ID is globally unique and serves as the lookup key; storage
// keeps a composite (UserID, ID) identity with a cascade delete on the user.
type Credential struct {
	ID         string
	UserID     int64
	PublicKey  []byte
	Counter    uint32
	BackedUp   bool
	Transports []string
}

// OwnedCredential is a credential joined with its owning user, as returned by
// a lookup keyed on the credential ID alone.
type OwnedCredential struct {
	Credential Credential
	Owner      User
}
