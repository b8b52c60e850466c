package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTokenManager_Generate_And_Validate(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("secret", time.Hour)

	token, err := manager.Generate("user-42", "Cedar", []string{"member"})
	req.NoError(err)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("user-42", claims.UserID)
	req.Equal("Cedar", claims.Alias)
	req.Equal([]string{"member"}, claims.Roles)
	req.Equal("sanctuary", claims.Issuer)
}

func TestTokenManager_Validate_Wrong_Secret(t *testing.T) {
	req := require.New(t)
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Generate("user-42", "", nil)
	req.NoError(err)

	_, err = verifier.Validate(token)
	req.Error(err)
}

func TestTokenManager_Validate_Expired(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("secret", -time.Minute)

	token, err := manager.Generate("user-42", "", nil)
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestTokenManager_Validate_Garbage(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("secret", time.Hour)

	_, err := manager.Validate("definitely.not.a.jwt")
	req.Error(err)
}
