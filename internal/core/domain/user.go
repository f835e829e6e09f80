package domain

// User mirrors the persisted representation in the users table.
//
// The ID is assigned by the store on insert. Email doubles as the login
// identifier and is unique across all users. PasswordHash is nil for
// credential-only accounts; a user with neither a password hash nor a linked
// credential is a valid but unauthenticatable record.
type User struct {
	ID           int64
	Name         string
	Email        string
	Login        string
	PasswordHash *string
}

// PasswordCapable reports whether the account can be authenticated with a password.
func (u User) PasswordCapable() bool {
	return u.PasswordHash != nil && *u.PasswordHash != ""
}

// Subject strips secret material and shapes the user for session establishment.
// This is the only form in which a user record leaves the authentication core.
func (u User) Subject() SessionSubject {
	return SessionSubject{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Login: u.Login,
	}
}

// SessionSubject is the sanitized user record handed to the session issuer
// after any successful authentication path.
type SessionSubject struct {
	ID    int64
	Name  string
	Email string
	Login string
}

// Session captures the request's authentication context: either anonymous or
// bound to an already-authenticated user. Constructed only through
// AnonymousSession and AuthenticatedSession so the two states cannot be mixed.
type Session struct {
	user *User
}

// AnonymousSession returns a session with no authenticated user.
func AnonymousSession() Session {
	return Session{}
}

// AuthenticatedSession returns a session bound to the supplied user.
func AuthenticatedSession(u User) Session {
	return Session{user: &u}
}

// User returns the authenticated user, if any.
func (s Session) User() (User, bool) {
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}
