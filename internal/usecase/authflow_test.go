package usecase

import (
	"context"
	"testing"

	"github.com/dreznev/authcore/internal/core/domain"
	"github.com/dreznev/authcore/internal/repository"
)

// memoryStore backs the flow tests with one consistent in-memory account and
// credential state, mirroring the persistence contracts: unique emails, unique
// credential ids, known-id upserts touching only name and email.
type memoryStore struct {
	users  map[int64]domain.User
	creds  map[string]domain.Credential
	nextID int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  map[int64]domain.User{},
		creds:  map[string]domain.Credential{},
		nextID: 1,
	}
}

func (s *memoryStore) findByEmail(email string) *domain.User {
	for _, u := range s.users {
		if u.Email == email {
			found := u
			return &found
		}
	}
	return nil
}

func (s *memoryStore) PersistRegistration(ctx context.Context, user domain.User, credential domain.Credential) (domain.User, error) {
	committed, err := memoryUsers{s}.UpsertOnIDConflict(ctx, user)
	if err != nil {
		return domain.User{}, err
	}

	credential.UserID = committed.ID
	if err := (memoryCredentials{s}).Insert(ctx, credential); err != nil {
		return domain.User{}, err
	}

	return committed, nil
}

type memoryUsers struct{ s *memoryStore }

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if u := r.s.findByEmail(email); u != nil {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (r memoryUsers) Insert(_ context.Context, user domain.User) (domain.User, error) {
	if r.s.findByEmail(user.Email) != nil {
		return domain.User{}, repository.ErrConflict
	}
	user.ID = r.s.nextID
	r.s.nextID++
	r.s.users[user.ID] = user
	return user, nil
}

func (r memoryUsers) UpsertOnIDConflict(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == 0 {
		return r.Insert(ctx, user)
	}

	existing, ok := r.s.users[user.ID]
	if !ok {
		if r.s.findByEmail(user.Email) != nil {
			return domain.User{}, repository.ErrConflict
		}
		r.s.users[user.ID] = user
		return user, nil
	}

	existing.Name = user.Name
	existing.Email = user.Email
	r.s.users[user.ID] = existing
	return existing, nil
}

type memoryCredentials struct{ s *memoryStore }

func (r memoryCredentials) FindByID(_ context.Context, credentialID string) (*domain.OwnedCredential, error) {
	cred, ok := r.s.creds[credentialID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	owner, ok := r.s.users[cred.UserID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &domain.OwnedCredential{Credential: cred, Owner: owner}, nil
}

func (r memoryCredentials) ListByUser(_ context.Context, userID int64) ([]domain.Credential, error) {
	var out []domain.Credential
	for _, cred := range r.s.creds {
		if cred.UserID == userID {
			out = append(out, cred)
		}
	}
	return out, nil
}

func (r memoryCredentials) Insert(_ context.Context, credential domain.Credential) error {
	if _, ok := r.s.creds[credential.ID]; ok {
		return repository.ErrConflict
	}
	r.s.creds[credential.ID] = credential
	return nil
}

func (r memoryCredentials) BumpCounter(_ context.Context, credentialID string, counter uint32) error {
	cred, ok := r.s.creds[credentialID]
	if !ok {
		return repository.ErrNotFound
	}
	if counter > cred.Counter {
		cred.Counter = counter
		r.s.creds[credentialID] = cred
	}
	return nil
}

func TestPasskeyRegistrationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	registrar := NewRegistrar(memoryUsers{store}, store, nil)
	passkeys := NewPasskeyService(memoryUsers{store}, memoryCredentials{store}, nil)

	identity, err := registrar.ValidateIdentity(ctx, domain.AnonymousSession(), ProposedIdentity{
		Email: "new@example.com",
		Name:  "New User",
	})
	if err != nil {
		t.Fatalf("validate identity: %v", err)
	}

	subject, err := registrar.OnCredentialReady(ctx, identity, material())
	if err != nil {
		t.Fatalf("persist credential: %v", err)
	}

	allowed, err := passkeys.AllowedCredentials(ctx, "new@example.com")
	if err != nil {
		t.Fatalf("allowed credentials: %v", err)
	}
	if len(allowed) != 1 {
		t.Fatalf("expected exactly the registered credential, got %d", len(allowed))
	}
	if allowed[0].ID != material().ID {
		t.Fatalf("unexpected credential id %q", allowed[0].ID)
	}
	if allowed[0].UserID != subject.ID {
		t.Fatalf("credential bound to user %d, subject is %d", allowed[0].UserID, subject.ID)
	}

	owned, err := passkeys.ResolveCredential(ctx, material().ID)
	if err != nil {
		t.Fatalf("resolve credential: %v", err)
	}
	if owned.Owner.ID != subject.ID || owned.Owner.Email != "new@example.com" {
		t.Fatalf("credential resolves to the wrong owner: %+v", owned.Owner)
	}
}

func TestExistingAccountAddsSecondCredential(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	registrar := NewRegistrar(memoryUsers{store}, store, nil)
	passkeys := NewPasskeyService(memoryUsers{store}, memoryCredentials{store}, nil)

	subject, err := registrar.RegisterPassword(ctx, "ada@example.com", "Ada", "correct horse")
	if err != nil {
		t.Fatalf("register password account: %v", err)
	}
	session := domain.AuthenticatedSession(domain.User{ID: subject.ID, Name: subject.Name, Email: subject.Email})

	first := material()
	identity, err := registrar.ValidateIdentity(ctx, session, ProposedIdentity{Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("validate identity: %v", err)
	}
	if identity.UserID == nil || *identity.UserID != subject.ID {
		t.Fatalf("identity must resolve to the existing account, got %+v", identity)
	}
	if _, err := registrar.OnCredentialReady(ctx, identity, first); err != nil {
		t.Fatalf("persist first credential: %v", err)
	}

	second := material()
	second.ID = "c2Vjb25kLWlk"
	identity, err = registrar.ValidateIdentity(ctx, session, ProposedIdentity{Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("validate identity again: %v", err)
	}
	if _, err := registrar.OnCredentialReady(ctx, identity, second); err != nil {
		t.Fatalf("persist second credential: %v", err)
	}

	allowed, err := passkeys.AllowedCredentials(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("allowed credentials: %v", err)
	}
	if len(allowed) != 2 {
		t.Fatalf("expected both credentials, got %d", len(allowed))
	}

	if len(store.users) != 1 {
		t.Fatalf("re-registration must not duplicate the account, have %d users", len(store.users))
	}
	account := store.users[subject.ID]
	if account.Email != "ada@example.com" || account.Name != "Ada" {
		t.Fatalf("account identity must survive the upsert: %+v", account)
	}
	if account.PasswordHash == nil {
		t.Fatal("known-id upsert touches only name and email; the password hash must survive")
	}
}
