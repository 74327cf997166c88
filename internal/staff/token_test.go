package staff

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParseToken(t *testing.T) {
	member := &Member{ID: uuid.New(), Role: RoleAdmin}

	token, err := IssueToken("test-secret", member, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken("test-secret", token)
	require.NoError(t, err)
	assert.Equal(t, member.ID.String(), claims.Subject)
	assert.Equal(t, RoleAdmin, claims.Role)
}

func TestParseTokenWrongSecret(t *testing.T) {
	member := &Member{ID: uuid.New(), Role: RoleStaff}

	token, err := IssueToken("test-secret", member, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	member := &Member{ID: uuid.New(), Role: RoleStaff}

	token, err := IssueToken("test-secret", member, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("test-secret", token)
	assert.Error(t, err)
}

func TestIssueTokenRequiresSecret(t *testing.T) {
	_, err := IssueToken("", &Member{ID: uuid.New()}, time.Hour)
	assert.Error(t, err)
}
