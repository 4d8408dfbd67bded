package identity

import (
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Username, password, and display name bounds enforced at registration
// and profile update time.
const (
	UsernameMinLen    = 3
	UsernameMaxLen    = 36
	PasswordMinLen    = 6
	PasswordMaxLen    = 36
	DisplayNameMinLen = 3
	DisplayNameMaxLen = 50
)

// UsernameRegex is the shape generated and accepted usernames must match.
var UsernameRegex = regexp.MustCompile(`^[a-z0-9]+$`)

// Config carries every tunable of the identity service. Zero values are
// rejected by Validate for the secrets; durations default to the values
// in the env tags.
type Config struct {
	AccessTokenSecret  string        `env:"IDENTITY_ACCESS_TOKEN_SECRET"`
	AccessTokenTTL     time.Duration `env:"IDENTITY_ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenSecret string        `env:"IDENTITY_REFRESH_TOKEN_SECRET"`
	RefreshTokenTTL    time.Duration `env:"IDENTITY_REFRESH_TOKEN_TTL" envDefault:"168h"`
	TokenIssuer        string        `env:"IDENTITY_TOKEN_ISSUER" envDefault:"go-identity"`

	EmailVerificationTTL time.Duration `env:"IDENTITY_EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	ResetPasswordTTL     time.Duration `env:"IDENTITY_RESET_PASSWORD_TTL" envDefault:"1h"`
	SweepInterval        time.Duration `env:"IDENTITY_SWEEP_INTERVAL" envDefault:"24h"`

	BcryptCost int `env:"IDENTITY_BCRYPT_COST" envDefault:"12"`

	GoogleClientID     string `env:"IDENTITY_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"IDENTITY_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"IDENTITY_GOOGLE_CALLBACK_URL"`
	LoginRedirectURL   string `env:"IDENTITY_LOGIN_REDIRECT_URL" envDefault:"/"`

	BaseURL string `env:"IDENTITY_BASE_URL" envDefault:"http://localhost:3000"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return cfg, goerrors.Wrap(err, goerrors.CategoryInternal, "parsing identity config")
	}
	return cfg, nil
}

// Validate fails fast on a config that cannot mint or verify tokens.
func (c Config) Validate() error {
	if c.AccessTokenSecret == "" {
		return goerrors.New("access token secret is required", goerrors.CategoryValidation)
	}

	if c.RefreshTokenSecret == "" {
		return goerrors.New("refresh token secret is required", goerrors.CategoryValidation)
	}

	if c.AccessTokenSecret == c.RefreshTokenSecret {
		return goerrors.New("access and refresh secrets must differ", goerrors.CategoryValidation)
	}

	if c.AccessTokenTTL <= 0 {
		return goerrors.New("access token TTL must be positive", goerrors.CategoryValidation)
	}

	if c.RefreshTokenTTL <= 0 {
		return goerrors.New("refresh token TTL must be positive", goerrors.CategoryValidation)
	}

	if c.EmailVerificationTTL <= 0 {
		return goerrors.New("email verification TTL must be positive", goerrors.CategoryValidation)
	}

	if c.ResetPasswordTTL <= 0 {
		return goerrors.New("reset password TTL must be positive", goerrors.CategoryValidation)
	}

	if c.SweepInterval <= 0 {
		return goerrors.New("sweep interval must be positive", goerrors.CategoryValidation)
	}

	return nil
}
