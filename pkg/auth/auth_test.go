package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrish/justfinance/pkg/models"
)

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	user := &models.User{ID: uuid.New(), Username: "admin"}

	token, err := m.Generate(user)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.UserID)
	assert.Equal(t, "admin", claims.Username)
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "admin"}
	token, err := NewJWTManager("secret-a", time.Hour).Generate(user)
	require.NoError(t, err)

	_, err = NewJWTManager("secret-b", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsExpiredToken(t *testing.T) {
	m := NewJWTManager("test-secret", -time.Minute)
	user := &models.User{ID: uuid.New(), Username: "admin"}

	token, err := m.Generate(user)
	require.NoError(t, err)

	_, err = m.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)
	_, err := m.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHashAndCheck(t *testing.T) {
	hash, err := HashPassword("hunter2-but-longer")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2-but-longer", hash)

	assert.NoError(t, CheckPassword(hash, "hunter2-but-longer"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
}

func TestPasscodeGate(t *testing.T) {
	gate := NewPasscodeGate("1234")

	assert.NoError(t, gate.Verify("1234"))
	assert.ErrorIs(t, gate.Verify("4321"), ErrInvalidPasscode)
	assert.ErrorIs(t, gate.Verify(""), ErrInvalidPasscode)

	unset := NewPasscodeGate("")
	assert.ErrorIs(t, unset.Verify("anything"), ErrPasscodeNotSet)
}
