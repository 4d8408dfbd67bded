package httpapi_test

import (
	"context"
	"database/sql"
	"io/fs"
	"sort"
	"testing"
	"time"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/blob"
	"github.com/goliatone/go-identity/httpapi"
	"github.com/goliatone/go-identity/social"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

type fixture struct {
	controller *httpapi.Controller
	sessions   *identity.SessionManager
	repo       identity.RepositoryManager
	tokens     chan string
}

func testConfig() identity.Config {
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
		LoginRedirectURL:     "/home",
	}
}

// channelMailer pushes every generated token into one channel.
type channelMailer struct {
	tokens chan string
}

func (m channelMailer) SendEmailVerification(ctx context.Context, email, token string) error {
	m.tokens <- token
	return nil
}

func (m channelMailer) SendPasswordReset(ctx context.Context, email, token string) error {
	m.tokens <- token
	return nil
}

func newFixture(t *testing.T) *fixture {
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

	cfg := testConfig()
	access := identity.NewTokenService([]byte(cfg.AccessTokenSecret), cfg.AccessTokenTTL, cfg.TokenIssuer, repo.Blacklist(), nil)
	refresh := identity.NewTokenService([]byte(cfg.RefreshTokenSecret), cfg.RefreshTokenTTL, cfg.TokenIssuer, repo.Blacklist(), nil)

	tokens := make(chan string, 8)
	sessions := identity.NewSessionManager(repo, access, refresh, cfg).
		WithMailer(channelMailer{tokens: tokens})

	users := identity.NewUsersService(repo, blob.NewMemoryStore("https://cdn.test"))

	controller := httpapi.NewController(sessions, users, repo, access, cfg,
		httpapi.WithProvider(stubProvider{}, social.NewSignedStateManager([]byte("state-secret"), time.Minute)),
	)

	return &fixture{
		controller: controller,
		sessions:   sessions,
		repo:       repo,
		tokens:     tokens,
	}
}

func (f *fixture) waitToken(t *testing.T) string {
	t.Helper()
	select {
	case token := <-f.tokens:
		return token
	case <-time.After(2 * time.Second):
		t.Fatal("no lifecycle email was sent")
		return ""
	}
}

// registerVerified walks an account through registration and verification.
func (f *fixture) registerVerified(t *testing.T, email, password string) *identity.User {
	t.Helper()

	ctx := context.Background()
	user, err := f.sessions.Register(ctx, identity.RegisterInput{Email: email, Password: password})
	require.NoError(t, err)
	require.NoError(t, f.sessions.VerifyEmail(ctx, f.waitToken(t)))

	loaded, err := f.repo.Users().GetWithRelations(ctx, user.ID)
	require.NoError(t, err)
	return loaded
}

// stubProvider satisfies social.Provider without talking to Google.
type stubProvider struct{}

func (stubProvider) Name() string { return "google" }

func (stubProvider) AuthCodeURL(state string) string {
	return "https://accounts.test/authorize?state=" + state
}

func (stubProvider) Exchange(ctx context.Context, code string) (*social.Token, error) {
	if code == "" {
		return nil, social.ErrTokenExchangeFailed
	}
	return &social.Token{AccessToken: "provider-access"}, nil
}

func (stubProvider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	return &social.Profile{
		ProviderUserID: "g-provider-1",
		Provider:       "google",
		Email:          "oauth@example.com",
		EmailVerified:  true,
		Name:           "OAuth Person",
	}, nil
}
