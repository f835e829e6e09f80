package webauthn

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/infra/config"
)

// NewRelyingParty builds the WebAuthn relying party from configuration. The
// ceremony library owns the challenge/attestation wire format; the policy
// layer above only sees verified credentials.
func NewRelyingParty(cfg config.WebAuthnSettings) (*webauthn.WebAuthn, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RPID,
		RPDisplayName: cfg.RPDisplayName,
		RPOrigins:     cfg.RPOrigins,
	})
	if err != nil {
		return nil, fmt.Errorf("configure relying party: %w", err)
	}
	return wa, nil
}

// CeremonyUser adapts an identity to the webauthn.User interface for the
// duration of one ceremony.
type CeremonyUser struct {
	Handle      []byte
	Name        string
	DisplayName string
	Credentials []webauthn.Credential
}

func (u *CeremonyUser) WebAuthnID() []byte          { return u.Handle }
func (u *CeremonyUser) WebAuthnName() string        { return u.Name }
func (u *CeremonyUser) WebAuthnDisplayName() string { return u.DisplayName }
func (u *CeremonyUser) WebAuthnIcon() string        { return "" }

func (u *CeremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.Credentials
}

// CeremonyHandle derives the stable user handle for an identity. The handle
// must be identical at registration and at every later assertion, and must not
// carry the address itself, so it is a digest of the email.
func CeremonyHandle(email string) []byte {
	sum := sha256.Sum256([]byte(email))
	return sum[:]
}

// EncodeCredentialID renders a raw credential id in the form stored and
// looked up by the credential repository.
func EncodeCredentialID(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

// LibraryCredential converts a stored credential into the ceremony library's
// representation.
func LibraryCredential(c domain.Credential) (webauthn.Credential, error) {
	rawID, err := base64.RawURLEncoding.DecodeString(c.ID)
	if err != nil {
		return webauthn.Credential{}, fmt.Errorf("decode credential id: %w", err)
	}

	transports := make([]protocol.AuthenticatorTransport, 0, len(c.Transports))
	for _, t := range c.Transports {
		transports = append(transports, protocol.AuthenticatorTransport(t))
	}

	return webauthn.Credential{
		ID:        rawID,
		PublicKey: c.PublicKey,
		Transport: transports,
		Flags: webauthn.CredentialFlags{
			BackupState: c.BackedUp,
		},
		Authenticator: webauthn.Authenticator{
			SignCount: c.Counter,
		},
	}, nil
}

// Transports converts the library's transport hints to the stored form.
func Transports(transports []protocol.AuthenticatorTransport) []string {
	out := make([]string, 0, len(transports))
	for _, t := range transports {
		out = append(out, string(t))
	}
	return out
}
