package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"sgcsc-backend/internal/models"
	"sgcsc-backend/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = strings.Repeat("k", 32)

type fixture struct {
	store   *store.Memory
	creds   *CredentialService
	issuer  *Issuer
	revoker *MemoryRevoker
	guard   *Guard
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	creds := NewCredentialService(st, bcrypt.MinCost)
	issuer := NewIssuer(creds, testSecret, time.Hour)
	revoker := NewMemoryRevoker()
	return &fixture{
		store:   st,
		creds:   creds,
		issuer:  issuer,
		revoker: revoker,
		guard:   NewGuard(issuer, st, revoker, zap.NewNop()),
	}
}

func (f *fixture) franchise(t *testing.T, instituteID string, status models.FranchiseStatus) *models.Franchise {
	t.Helper()
	fr := &models.Franchise{
		InstituteID:   instituteID,
		InstituteName: "Center " + instituteID,
		OwnerName:     "Owner",
		Email:         strings.ToLower(instituteID) + "@example.com",
		ContactNumber: "9999999999",
		Status:        status,
	}
	require.NoError(t, f.store.CreateFranchise(context.Background(), fr))
	return fr
}

func (f *fixture) credential(t *testing.T, username string, role models.Role, owner *uint) *models.Credential {
	t.Helper()
	cred, err := f.creds.Create(context.Background(), NewCredential{
		Username: username,
		Password: "secret-" + username,
		Name:     "User " + username,
		Role:     role,
		OwnerID:  owner,
	})
	require.NoError(t, err)
	return cred
}

func (f *fixture) token(t *testing.T, username string) string {
	t.Helper()
	sess, _, err := f.issuer.Login(context.Background(), username, "secret-"+username)
	require.NoError(t, err)
	return sess.Token
}
