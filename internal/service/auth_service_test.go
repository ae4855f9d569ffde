package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/unilab/slotbook-api/internal/models"
	appErrors "github.com/unilab/slotbook-api/pkg/errors"
)

type mockUserRepo struct {
	users map[string]*models.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	user, _ := m.FindByEmail(ctx, email)
	return user != nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func newAuthTestService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, nil, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "slotbook-api",
	})
}

func TestRegisterCreatesAccount(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "Anna@Example.com",
		Password: "s3cretpass",
		FullName: "Anna Kowalska",
		Role:     "TEACHER",
	})
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", info.Email)
	assert.Equal(t, models.RoleTeacher, info.Role)

	stored := repo.users[info.ID]
	require.NotNil(t, stored)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("s3cretpass")))
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "anna@example.com", Password: "s3cretpass", FullName: "Anna", Role: "TEACHER",
	})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), models.RegisterRequest{
		Email: "ANNA@example.com", Password: "otherpass1", FullName: "Other Anna", Role: "STUDENT",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "root@example.com", Password: "s3cretpass", FullName: "Root", Role: "ADMIN",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestLoginIssuesValidToken(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "jan@example.com", Password: "s3cretpass", FullName: "Jan Nowak", Role: "STUDENT",
	})
	require.NoError(t, err)

	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "jan@example.com", Password: "s3cretpass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, info.ID, result.User.ID)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, info.ID, claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "jan@example.com", Password: "s3cretpass", FullName: "Jan", Role: "STUDENT",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email: "jan@example.com", Password: "wrongpass1",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "jan@example.com", Password: "s3cretpass", FullName: "Jan", Role: "STUDENT",
	})
	require.NoError(t, err)
	repo.users[info.ID].Active = false

	_, err = svc.Login(context.Background(), models.LoginRequest{
		Email: "jan@example.com", Password: "s3cretpass",
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestValidateTokenRejectsTampered(t *testing.T) {
	repo := newMockUserRepo()
	svc := newAuthTestService(repo)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "jan@example.com", Password: "s3cretpass", FullName: "Jan", Role: "STUDENT",
	})
	require.NoError(t, err)
	result, err := svc.Login(context.Background(), models.LoginRequest{
		Email: "jan@example.com", Password: "s3cretpass",
	})
	require.NoError(t, err)

	_, err = svc.ValidateToken(result.AccessToken + "x")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}
