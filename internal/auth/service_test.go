package auth

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderdesk/orderdesk/internal/domain"
	"github.com/orderdesk/orderdesk/internal/repository"
)

func newService() *Service {
	store := repository.NewMemoryStore()
	return NewService(repository.NewMemoryUsers(store), "test-secret", zerolog.Nop())
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	u, err := svc.Register(ctx, "alice", "s3cret", domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.NotEqual(t, "s3cret", u.PasswordHash)

	token, got, err := svc.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, u.ID, got.ID)

	id, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
	assert.Equal(t, domain.RoleAdmin, id.Role)
}

func TestRegisterDefaultsToUserRole(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	u, err := svc.Register(ctx, "bob", "s3cret", "")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, u.Role)
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "  ", "s3cret", domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Register(ctx, "carol", "ab", domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Register(ctx, "carol", "s3cret", domain.Role("root"))
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "alice", "s3cret", domain.RoleUser)
	require.NoError(t, err)
	_, err = svc.Register(ctx, "alice", "other", domain.RoleUser)
	require.ErrorIs(t, err, domain.ErrDuplicateUsername)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	_, err := svc.Register(ctx, "alice", "s3cret", domain.RoleUser)
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// unknown user fails the same way
	_, _, err = svc.Login(ctx, "nobody", "s3cret")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := newService()

	_, err := svc.ParseToken("not-a-token")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestParseTokenRejectsForeignSignature(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	users := repository.NewMemoryUsers(store)
	issuer := NewService(users, "secret-a", zerolog.Nop())
	verifier := NewService(users, "secret-b", zerolog.Nop())

	_, err := issuer.Register(ctx, "alice", "s3cret", domain.RoleUser)
	require.NoError(t, err)
	token, _, err := issuer.Login(ctx, "alice", "s3cret")
	require.NoError(t, err)

	_, err = verifier.ParseToken(token)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestGate(t *testing.T) {
	assert.True(t, Allowed(domain.RoleAdmin, OpManageCatalog))
	assert.True(t, Allowed(domain.RoleAdmin, OpDeleteOrder))
	assert.True(t, Allowed(domain.RoleAdmin, OpViewReports))

	assert.True(t, Allowed(domain.RoleUser, OpPlaceOrder))
	assert.True(t, Allowed(domain.RoleUser, OpViewOwnOrders))
	assert.False(t, Allowed(domain.RoleUser, OpManageCatalog))
	assert.False(t, Allowed(domain.RoleUser, OpEditOrder))
	assert.False(t, Allowed(domain.RoleUser, OpDeleteOrder))
	assert.False(t, Allowed(domain.RoleUser, OpSetOrderStatus))
	assert.False(t, Allowed(domain.RoleUser, OpViewAllOrders))
	assert.False(t, Allowed(domain.RoleUser, OpViewReports))

	assert.False(t, Allowed(domain.Role("root"), OpPlaceOrder))
}
