package storefake

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mycoding/go-session/identity"
	"github.com/pkg/errors"
)

var _ identity.Store = (*FakeIdentityStore)(nil)

// FakeIdentityStore is a thread-safe in-memory identity.Store. The
// call counters let tests assert which lookups ran.
type FakeIdentityStore struct {
	users    map[string]*identity.User
	emailIds map[string]string // email to user id
	lock     sync.RWMutex
	nowTime  func() time.Time

	FindByCredentialsCallCount int
	FindByIDCallCount          int
	CreateCallCount            int
	ExistsByEmailCallCount     int
}

func NewFakeIdentityStore() *FakeIdentityStore {
	return &FakeIdentityStore{
		users:    make(map[string]*identity.User),
		emailIds: make(map[string]string),
		nowTime:  time.Now,
	}
}

// SeedDefaults creates the built-in development accounts:
// admin@mycoding.com/admin123 and user@mycoding.com/user123.
func (is *FakeIdentityStore) SeedDefaults() error {
	seeds := []struct {
		name     string
		email    string
		password string
		role     identity.Role
	}{
		{name: "Admin User", email: "admin@mycoding.com", password: "admin123", role: identity.RoleAdmin},
		{name: "Demo User", email: "user@mycoding.com", password: "user123", role: identity.RoleUser},
	}

	for _, seed := range seeds {
		hash, err := identity.HashPassword(seed.password)
		if err != nil {
			return errors.Wrap(err, "[FakeIdentityStore.SeedDefaults] HashPassword")
		}
		if _, err := is.Create(&identity.User{
			Name:         seed.name,
			Email:        seed.email,
			Role:         seed.role,
			PasswordHash: hash,
		}); err != nil {
			return errors.Wrap(err, "[FakeIdentityStore.SeedDefaults] Create")
		}
	}

	// Seeding is fixture setup, not behavior under test: leave the call
	// counters at zero so they only reflect lookups made afterwards.
	is.lock.Lock()
	is.FindByCredentialsCallCount = 0
	is.FindByIDCallCount = 0
	is.CreateCallCount = 0
	is.ExistsByEmailCallCount = 0
	is.lock.Unlock()

	return nil
}

func (is *FakeIdentityStore) FindByCredentials(email, password string) (*identity.User, error) {
	is.lock.Lock()
	is.FindByCredentialsCallCount++
	userID, ok := is.emailIds[email]
	user := is.users[userID]
	is.lock.Unlock()

	if !ok || user == nil {
		return nil, identity.ErrNotFound
	}
	if !identity.CheckPasswordHash(password, user.PasswordHash) {
		return nil, identity.ErrNotFound
	}
	return copyUser(user), nil
}

func (is *FakeIdentityStore) FindByID(id string) (*identity.User, error) {
	is.lock.Lock()
	defer is.lock.Unlock()

	is.FindByIDCallCount++
	user, ok := is.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return copyUser(user), nil
}

func (is *FakeIdentityStore) Create(user *identity.User) (*identity.User, error) {
	is.lock.Lock()
	defer is.lock.Unlock()

	is.CreateCallCount++
	stored := copyUser(user)
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	now := is.nowTime()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	is.users[stored.ID] = stored
	is.emailIds[stored.Email] = stored.ID
	return copyUser(stored), nil
}

func (is *FakeIdentityStore) ExistsByEmail(email string) (bool, error) {
	is.lock.Lock()
	defer is.lock.Unlock()

	is.ExistsByEmailCallCount++
	_, ok := is.emailIds[email]
	return ok, nil
}

// Delete removes a user by email, for tests that need a stale identity.
func (is *FakeIdentityStore) Delete(email string) error {
	is.lock.Lock()
	defer is.lock.Unlock()

	userID, ok := is.emailIds[email]
	if !ok {
		return identity.ErrNotFound
	}
	delete(is.emailIds, email)
	delete(is.users, userID)
	return nil
}

func copyUser(user *identity.User) *identity.User {
	copied := *user
	if user.Avatar != nil {
		avatar := *user.Avatar
		copied.Avatar = &avatar
	}
	return &copied
}
