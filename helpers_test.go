package identity_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// newTestRepo opens an in-memory database, applies the sqlite migrations,
// and seeds the role catalog. A single connection keeps the schema alive
// for the whole test.
func newTestRepo(t *testing.T) (identity.RepositoryManager, *bun.DB) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	migrations, err := fs.Sub(identity.GetMigrationsFS(), "data/sql/migrations/sqlite")
	require.NoError(t, err)

	names, err := fs.Glob(migrations, "*.up.sql")
	require.NoError(t, err)
	sort.Strings(names)

	ctx := context.Background()
	for _, name := range names {
		ddl, err := fs.ReadFile(migrations, name)
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, string(ddl))
		require.NoError(t, err)
	}

	repo := identity.NewRepositoryManager(db)
	require.NoError(t, repo.Roles().Seed(ctx))

	return repo, db
}

func newTestConfig() identity.Config {
	return identity.Config{
		AccessTokenSecret:    "access-secret",
		RefreshTokenSecret:   "refresh-secret",
		AccessTokenTTL:       15 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		TokenIssuer:          "identity-test",
		EmailVerificationTTL: 24 * time.Hour,
		ResetPasswordTTL:     time.Hour,
		SweepInterval:        time.Hour,
		BcryptCost:           4,
	}
}

// captureMailer records lifecycle email through channels so tests can wait
// on the background delivery goroutine.
type captureMailer struct {
	verifications chan string
	resets        chan string
}

func newCaptureMailer() *captureMailer {
	return &captureMailer{
		verifications: make(chan string, 4),
		resets:        make(chan string, 4),
	}
}

func (m *captureMailer) SendEmailVerification(ctx context.Context, email, token string) error {
	m.verifications <- token
	return nil
}

func (m *captureMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.resets <- token
	return nil
}

func (m *captureMailer) waitVerification(t *testing.T) string {
	t.Helper()
	select {
	case token := <-m.verifications:
		return token
	case <-time.After(2 * time.Second):
		t.Fatal("no verification email was sent")
		return ""
	}
}

func (m *captureMailer) waitReset(t *testing.T) string {
	t.Helper()
	select {
	case token := <-m.resets:
		return token
	case <-time.After(2 * time.Second):
		t.Fatal("no reset email was sent")
		return ""
	}
}

// newSessionManager wires a manager against a fresh database and returns
// the capturing mailer alongside it.
func newSessionManager(t *testing.T) (*identity.SessionManager, identity.RepositoryManager, *bun.DB, *captureMailer) {
	t.Helper()

	repo, db := newTestRepo(t)
	cfg := newTestConfig()

	access := identity.NewTokenService([]byte(cfg.AccessTokenSecret), cfg.AccessTokenTTL, cfg.TokenIssuer, repo.Blacklist(), nil)
	refresh := identity.NewTokenService([]byte(cfg.RefreshTokenSecret), cfg.RefreshTokenTTL, cfg.TokenIssuer, repo.Blacklist(), nil)

	mailer := newCaptureMailer()
	sm := identity.NewSessionManager(repo, access, refresh, cfg).WithMailer(mailer)

	return sm, repo, db, mailer
}

// registerVerified walks an account through registration and email
// verification so it can log in.
func registerVerified(t *testing.T, sm *identity.SessionManager, mailer *captureMailer, email, password string) *identity.User {
	t.Helper()

	ctx := context.Background()
	user, err := sm.Register(ctx, identity.RegisterInput{Email: email, Password: password})
	require.NoError(t, err)

	token := mailer.waitVerification(t)
	require.NoError(t, sm.VerifyEmail(ctx, token))

	return user
}

// backdateToken pushes a token's expiration into the past.
func backdateToken(t *testing.T, db *bun.DB, content string) {
	t.Helper()

	_, err := db.NewUpdate().Model((*identity.Token)(nil)).
		Set("expiration_date = ?", time.Now().Add(-time.Hour)).
		Where("content = ?", content).
		Exec(context.Background())
	require.NoError(t, err)
}
