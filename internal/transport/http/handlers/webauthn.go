package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/core/port"
	"github.com/dreznev/authcore/internal/infra/security"
	authn "github.com/dreznev/authcore/internal/infra/webauthn"
	"github.com/dreznev/authcore/internal/transport/http/middleware"
	"github.com/dreznev/authcore/internal/usecase"
)

const defaultChallengeTTL = 5 * time.Minute

// ceremonyState is the serialized in-flight state of one challenge, held in
// the challenge store between begin and finish. Identity is only present for
// registration ceremonies.
type ceremonyState struct {
	Identity *usecase.ValidatedIdentity `json:"identity,omitempty"`
	Handle   []byte                     `json:"handle,omitempty"`
	Session  webauthn.SessionData       `json:"session"`
}

// WebAuthnHandler exposes the public-key credential registration and login
// ceremonies. Challenge generation and signature verification live in the
// ceremony library; this handler owns the HTTP shape and the single-use
// challenge state.
type WebAuthnHandler struct {
	rp         *webauthn.WebAuthn
	passkeys   *usecase.PasskeyService
	registrar  *usecase.Registrar
	sessions   *usecase.SessionService
	challenges port.ChallengeStore
	ttl        time.Duration
}

// NewWebAuthnHandler constructs WebAuthnHandler.
func NewWebAuthnHandler(
	rp *webauthn.WebAuthn,
	passkeys *usecase.PasskeyService,
	registrar *usecase.Registrar,
	sessions *usecase.SessionService,
	challenges port.ChallengeStore,
	challengeTTL time.Duration,
) *WebAuthnHandler {
	if challengeTTL <= 0 {
		challengeTTL = defaultChallengeTTL
	}
	return &WebAuthnHandler{
		rp:         rp,
		passkeys:   passkeys,
		registrar:  registrar,
		sessions:   sessions,
		challenges: challenges,
		ttl:        challengeTTL,
	}
}

// RegisterRoutes binds the ceremony routes.
func (h *WebAuthnHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/register/begin", h.beginRegistration)
	r.POST("/register/finish", h.finishRegistration)
	r.POST("/login/begin", h.beginLogin)
	r.POST("/login/finish", h.finishLogin)
}

func (h *WebAuthnHandler) beginRegistration(c *gin.Context) {
	var req CeremonyBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid registration payload"))
		return
	}

	ctx := c.Request.Context()
	session := middleware.GetSession(c)

	identity, err := h.registrar.ValidateIdentity(ctx, session, usecase.ProposedIdentity{
		Email: req.Email,
		Name:  req.Name,
	})
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "registration failed")
		return
	}

	var exclusions []protocol.CredentialDescriptor
	if identity.UserID != nil {
		existing, err := h.passkeys.AllowedCredentials(ctx, identity.Email)
		if err != nil {
			RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "registration failed")
			return
		}
		exclusions, err = credentialDescriptors(existing)
		if err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "registration failed"))
			return
		}
	}

	handle := authn.CeremonyHandle(identity.Email)
	user := &authn.CeremonyUser{
		Handle:      handle,
		Name:        identity.Email,
		DisplayName: displayName(identity.Name, identity.Email),
	}

	creation, sessionData, err := h.rp.BeginRegistration(user, webauthn.WithExclusions(exclusions))
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to create challenge"))
		return
	}

	ceremonyID, err := h.saveState(c, ceremonyState{
		Identity: &identity,
		Handle:   handle,
		Session:  *sessionData,
	})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "service temporarily unavailable"))
		return
	}

	c.JSON(http.StatusOK, CeremonyBeginResponse{
		CeremonyID: ceremonyID,
		Options:    creation,
	})
}

func (h *WebAuthnHandler) finishRegistration(c *gin.Context) {
	var req CeremonyFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid ceremony payload"))
		return
	}

	ctx := c.Request.Context()

	state, err := h.takeState(c, req.CeremonyID)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusBadRequest, "unknown or expired challenge")
		return
	}
	if state.Identity == nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "challenge does not belong to a registration ceremony"))
		return
	}

	parsed, err := protocol.ParseCredentialCreationResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed credential response"))
		return
	}

	user := &authn.CeremonyUser{
		Handle:      state.Handle,
		Name:        state.Identity.Email,
		DisplayName: displayName(state.Identity.Name, state.Identity.Email),
	}

	verified, err := h.rp.CreateCredential(user, state.Session, parsed)
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "credential verification failed"))
		return
	}

	subject, err := h.registrar.OnCredentialReady(ctx, *state.Identity, usecase.CredentialMaterial{
		ID:         authn.EncodeCredentialID(verified.ID),
		PublicKey:  verified.PublicKey,
		Counter:    verified.Authenticator.SignCount,
		BackedUp:   verified.Flags.BackupState,
		Transports: authn.Transports(verified.Transport),
	})
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "registration failed")
		return
	}

	token, err := h.sessions.Establish(ctx, subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{
		Token: token,
		User:  newUserSummary(subject),
	})
}

// beginLogin issues an assertion challenge. With a known email the challenge
// carries that account's credentials in allowCredentials; for an unknown email
// or no email at all a discoverable challenge is issued instead, so the
// response shape does not reveal whether the account exists.
func (h *WebAuthnHandler) beginLogin(c *gin.Context) {
	var req CeremonyBeginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid login payload"))
		return
	}

	ctx := c.Request.Context()

	var (
		assertion   *protocol.CredentialAssertion
		sessionData *webauthn.SessionData
	)

	if req.Email != "" {
		allowed, err := h.passkeys.AllowedCredentials(ctx, req.Email)
		if err != nil {
			RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "login failed")
			return
		}

		if len(allowed) > 0 {
			libCreds := make([]webauthn.Credential, 0, len(allowed))
			for _, cred := range allowed {
				libCred, err := authn.LibraryCredential(cred)
				if err != nil {
					c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
					return
				}
				libCreds = append(libCreds, libCred)
			}

			user := &authn.CeremonyUser{
				Handle:      authn.CeremonyHandle(req.Email),
				Name:        req.Email,
				DisplayName: req.Email,
				Credentials: libCreds,
			}

			assertion, sessionData, err = h.rp.BeginLogin(user)
			if err != nil {
				c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to create challenge"))
				return
			}
		}
	}

	if assertion == nil {
		var err error
		assertion, sessionData, err = h.rp.BeginDiscoverableLogin()
		if err != nil {
			c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to create challenge"))
			return
		}
	}

	ceremonyID, err := h.saveState(c, ceremonyState{Session: *sessionData})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "service temporarily unavailable"))
		return
	}

	c.JSON(http.StatusOK, CeremonyBeginResponse{
		CeremonyID: ceremonyID,
		Options:    assertion,
	})
}

func (h *WebAuthnHandler) finishLogin(c *gin.Context) {
	var req CeremonyFinishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid ceremony payload"))
		return
	}

	ctx := c.Request.Context()

	state, err := h.takeState(c, req.CeremonyID)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusBadRequest, "unknown or expired challenge")
		return
	}
	if state.Identity != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "challenge does not belong to a login ceremony"))
		return
	}

	parsed, err := protocol.ParseCredentialRequestResponseBody(bytes.NewReader(req.Credential))
	if err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed credential response"))
		return
	}

	owned, err := h.passkeys.ResolveCredential(ctx, authn.EncodeCredentialID(parsed.RawID))
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	libCred, err := authn.LibraryCredential(owned.Credential)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "login failed"))
		return
	}

	handle := authn.CeremonyHandle(owned.Owner.Email)
	verified, err := h.validateAssertion(state, parsed, handle, owned.Owner.Email, libCred)
	if err != nil {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "credential verification failed"))
		return
	}

	subject, err := h.passkeys.OnAuthenticated(ctx, *owned, verified.Authenticator.SignCount)
	if err != nil {
		RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "login failed")
		return
	}

	token, err := h.sessions.Establish(ctx, subject)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "failed to establish session"))
		return
	}

	c.JSON(http.StatusOK, SessionResponse{
		Token: token,
		User:  newUserSummary(subject),
	})
}

// validateAssertion runs the library verification appropriate to how the
// challenge was issued. A challenge bound to a user handle must be answered by
// a credential of that same account.
func (h *WebAuthnHandler) validateAssertion(
	state *ceremonyState,
	parsed *protocol.ParsedCredentialAssertionData,
	handle []byte,
	email string,
	libCred webauthn.Credential,
) (*webauthn.Credential, error) {
	if len(state.Session.UserID) > 0 {
		if !bytes.Equal(state.Session.UserID, handle) {
			return nil, fmt.Errorf("credential does not belong to the challenged account")
		}

		user := &authn.CeremonyUser{
			Handle:      handle,
			Name:        email,
			DisplayName: email,
			Credentials: []webauthn.Credential{libCred},
		}
		return h.rp.ValidateLogin(user, state.Session, parsed)
	}

	lookup := func(_, userHandle []byte) (webauthn.User, error) {
		if !bytes.Equal(userHandle, handle) {
			return nil, fmt.Errorf("user handle does not match the credential owner")
		}
		return &authn.CeremonyUser{
			Handle:      userHandle,
			Name:        email,
			DisplayName: email,
			Credentials: []webauthn.Credential{libCred},
		}, nil
	}
	return h.rp.ValidateDiscoverableLogin(lookup, state.Session, parsed)
}

func (h *WebAuthnHandler) saveState(c *gin.Context, state ceremonyState) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal ceremony state: %w", err)
	}

	id, err := security.GenerateSecureToken(32)
	if err != nil {
		return "", fmt.Errorf("generate ceremony id: %w", err)
	}

	if err := h.challenges.Save(c.Request.Context(), id, data, h.ttl); err != nil {
		return "", fmt.Errorf("save ceremony state: %w", err)
	}

	return id, nil
}

func (h *WebAuthnHandler) takeState(c *gin.Context, ceremonyID string) (*ceremonyState, error) {
	data, err := h.challenges.Take(c.Request.Context(), ceremonyID)
	if err != nil {
		return nil, err
	}

	var state ceremonyState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal ceremony state: %w", err)
	}

	return &state, nil
}

// credentialDescriptors converts stored credentials into exclusion
// descriptors so an authenticator refuses to re-register itself.
func credentialDescriptors(creds []domain.Credential) ([]protocol.CredentialDescriptor, error) {
	descriptors := make([]protocol.CredentialDescriptor, 0, len(creds))
	for _, cred := range creds {
		libCred, err := authn.LibraryCredential(cred)
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, libCred.Descriptor())
	}
	return descriptors, nil
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}
