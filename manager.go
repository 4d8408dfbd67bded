package identity

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// mailTimeout bounds the background email delivery attempts triggered by
// registration and password reset requests.
const mailTimeout = 30 * time.Second

// TokenPair is the result of every successful authentication flow.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// RegisterInput carries the fields accepted at registration. Username is
// optional; when empty one is derived from the email's local part.
type RegisterInput struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	Password    string `json:"password"`
}

func (r RegisterInput) Validate() error {
	err := validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(PasswordMinLen, PasswordMaxLen)),
		validation.Field(&r.Username, validation.Length(UsernameMinLen, UsernameMaxLen), validation.Match(UsernameRegex)),
		validation.Field(&r.DisplayName, validation.Length(DisplayNameMinLen, DisplayNameMaxLen)),
	)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid registration payload").
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

// GoogleProfile is the subset of an OAuth userinfo response the session
// manager needs to provision or match an account.
type GoogleProfile struct {
	GoogleID    string `json:"google_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	PictureURL  string `json:"picture_url"`
}

// SessionManager implements the account and session lifecycle: registration,
// verification, login, logout, token refresh, password recovery, and Google
// sign-in. All multi-write flows run in a single transaction.
type SessionManager struct {
	repo    RepositoryManager
	access  TokenService
	refresh TokenService
	cfg     Config
	mailer  Mailer
	logger  Logger
}

func NewSessionManager(repo RepositoryManager, access, refresh TokenService, cfg Config) *SessionManager {
	return &SessionManager{
		repo:    repo,
		access:  access,
		refresh: refresh,
		cfg:     cfg,
		mailer:  noopMailer{},
		logger:  defLogger{},
	}
}

// WithMailer will set mailer
func (sm *SessionManager) WithMailer(mailer Mailer) *SessionManager {
	if mailer != nil {
		sm.mailer = mailer
	}
	return sm
}

// WithLogger will set logger
func (sm *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		sm.logger = logger
	}
	return sm
}

// Login authenticates a credentialed account by username or email.
func (sm *SessionManager) Login(ctx context.Context, identifier, password string) (*TokenPair, error) {
	user, err := sm.repo.Users().GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, asRichError(err, "login lookup failed")
	}

	if user.IsExternal() || !user.HasPassword() {
		return nil, ErrExternalAccount
	}

	if !user.IsVerified {
		return nil, ErrEmailNotVerified
	}

	if err := ComparePasswordAndHash(password, *user.PasswordHash); err != nil {
		return nil, ErrInvalidPassword
	}

	pair, err := sm.generatePair(user.ID)
	if err != nil {
		return nil, err
	}

	sm.logger.Info("user %s has logged in", user.ID)
	return pair, nil
}

// Logout revokes both tokens of a session. The pair must verify and belong
// to the same subject; both jtis are blacklisted in one transaction.
func (sm *SessionManager) Logout(ctx context.Context, accessToken, refreshToken string) error {
	accessClaims, err := sm.access.Verify(accessToken)
	if err != nil {
		return err
	}

	refreshClaims, err := sm.refresh.Verify(refreshToken)
	if err != nil {
		return err
	}

	if accessClaims.Subject != refreshClaims.Subject {
		return ErrTokenSubjectMismatch
	}

	err = sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := sm.repo.Blacklist().AddTx(ctx, tx, accessClaims.ID, accessClaims.ExpiresAt.Time); err != nil {
			return err
		}
		return sm.repo.Blacklist().AddTx(ctx, tx, refreshClaims.ID, refreshClaims.ExpiresAt.Time)
	})
	if err != nil {
		return asRichError(err, "logout transaction failed")
	}

	sm.logger.Info("user %s has logged out", accessClaims.Subject)
	return nil
}

// RefreshTokens rotates a session: the presented refresh token is verified,
// checked against the blacklist, revoked, and replaced with a fresh pair.
func (sm *SessionManager) RefreshTokens(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := sm.refresh.Verify(refreshToken)
	if err != nil {
		return nil, err
	}

	revoked, err := sm.repo.Blacklist().Exists(ctx, claims.ID)
	if err != nil {
		return nil, asRichError(err, "blacklist lookup failed")
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrTokenInvalid
	}

	user, err := sm.repo.Users().GetWithRelations(ctx, userID)
	if err != nil {
		return nil, asRichError(err, "refresh lookup failed")
	}

	// mint the replacement before revoking anything, so a failure here
	// leaves the presented token usable
	pair, err := sm.generatePair(user.ID)
	if err != nil {
		return nil, err
	}

	// single-use refresh tokens: the old one dies with the rotation
	if err := sm.repo.Blacklist().Add(ctx, claims.ID, claims.ExpiresAt.Time); err != nil {
		return nil, asRichError(err, "failed to revoke rotated token")
	}

	sm.logger.Info("user %s has refreshed their tokens", user.ID)
	return pair, nil
}

// Register creates an unverified account with the USER role and an email
// verification token, then emails the token in the background.
func (sm *SessionManager) Register(ctx context.Context, input RegisterInput) (*User, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	user := &User{}
	var verification string

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := sm.repo.Users().ExistsByEmailTx(ctx, tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailInUse
		}

		username, err := sm.resolveUsername(ctx, tx, input.Username, email)
		if err != nil {
			return err
		}

		hash, err := HashPassword(input.Password, sm.cfg.BcryptCost)
		if err != nil {
			return err
		}

		verification, err = randomHex(tokenEntropyBytes)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
		}

		token := &Token{
			ID:             uuid.New(),
			Content:        verification,
			ExpirationDate: time.Now().Add(sm.cfg.EmailVerificationTTL),
		}
		if _, err := sm.repo.Tokens().CreateTx(ctx, tx, token); err != nil {
			return err
		}

		user.Email = email
		user.Username = username
		user.PasswordHash = &hash
		user.VerificationTokenID = &token.ID
		if name := parseDisplayName(input.DisplayName); name != "" {
			user.DisplayName = &name
		}
		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		} else {
			user.ID = uuid.New()
		}

		if user, err = sm.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return sm.grantRole(ctx, tx, user.ID, RoleUser)
	})

	if err != nil {
		return nil, asRichError(err, "registration transaction failed")
	}

	sm.sendMail(func(ctx context.Context) error {
		return sm.mailer.SendEmailVerification(ctx, user.Email, verification)
	})

	sm.logger.Info("user %s has registered", user.ID)
	return user, nil
}

// VerifyEmail consumes a verification token. An expired token removes both
// the token and the unverified account it belongs to, so the email address
// becomes available again.
func (sm *SessionManager) VerifyEmail(ctx context.Context, tokenContent string) error {
	var expired bool
	var userID uuid.UUID

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := sm.repo.Tokens().GetByContentTx(ctx, tx, tokenContent)
		if err != nil {
			return err
		}

		user, err := sm.repo.Users().GetByVerificationTokenTx(ctx, tx, token.ID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenNotFound
			}
			return err
		}
		userID = user.ID

		if token.Expired(time.Now()) {
			expired = true
			if err := sm.repo.Users().RemoveTx(ctx, tx, user.ID); err != nil {
				return err
			}
			return sm.repo.Tokens().RemoveTx(ctx, tx, token.ID)
		}

		if _, err := tx.NewUpdate().Model((*User)(nil)).
			Set("is_verified = ?", true).
			Set("verification_token_id = NULL").
			Where("id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}

		return sm.repo.Tokens().RemoveTx(ctx, tx, token.ID)
	})

	if err != nil {
		return asRichError(err, "email verification transaction failed")
	}

	if expired {
		sm.logger.Warn("user %s presented an expired verification token, account removed", userID)
		return ErrTokenExpired
	}

	sm.logger.Info("user %s has verified their email", userID)
	return nil
}

// ForgotPassword opens a password reset window for a verified, credentialed
// account. At most one reset request can be outstanding.
func (sm *SessionManager) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	var reset string

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := sm.repo.Users().GetByIdentifierTx(ctx, tx, email)
		if err != nil {
			return err
		}

		if !user.IsVerified {
			return ErrEmailNotVerified
		}

		if user.IsExternal() || !user.HasPassword() {
			return ErrExternalAccount
		}

		if user.ResetTokenID != nil {
			return ErrResetAlreadyRequested
		}

		reset, err = randomHex(tokenEntropyBytes)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate reset token")
		}

		token := &Token{
			ID:             uuid.New(),
			Content:        reset,
			ExpirationDate: time.Now().Add(sm.cfg.ResetPasswordTTL),
		}
		if _, err := sm.repo.Tokens().CreateTx(ctx, tx, token); err != nil {
			return err
		}

		_, err = tx.NewUpdate().Model((*User)(nil)).
			Set("reset_token_id = ?", token.ID).
			Where("id = ?", user.ID).
			Exec(ctx)
		return err
	})

	if err != nil {
		return asRichError(err, "forgot password transaction failed")
	}

	sm.sendMail(func(ctx context.Context) error {
		return sm.mailer.SendPasswordReset(ctx, email, reset)
	})

	sm.logger.Info("password reset requested for %s", email)
	return nil
}

// ResetPassword consumes a reset token and replaces the account password.
// An expired token is discarded and the request window closed; the account
// itself is untouched.
func (sm *SessionManager) ResetPassword(ctx context.Context, tokenContent, newPassword string) error {
	if err := validation.Validate(newPassword,
		validation.Required,
		validation.Length(PasswordMinLen, PasswordMaxLen),
	); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password").
			WithCode(goerrors.CodeBadRequest)
	}

	var expired bool
	var userID uuid.UUID

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		token, err := sm.repo.Tokens().GetByContentTx(ctx, tx, tokenContent)
		if err != nil {
			return err
		}

		user, err := sm.repo.Users().GetByResetTokenTx(ctx, tx, token.ID)
		if err != nil {
			if goerrors.IsNotFound(err) {
				return ErrTokenNotFound
			}
			return err
		}
		userID = user.ID

		if token.Expired(time.Now()) {
			expired = true
			if _, err := tx.NewUpdate().Model((*User)(nil)).
				Set("reset_token_id = NULL").
				Where("id = ?", user.ID).
				Exec(ctx); err != nil {
				return err
			}
			return sm.repo.Tokens().RemoveTx(ctx, tx, token.ID)
		}

		hash, err := HashPassword(newPassword, sm.cfg.BcryptCost)
		if err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model((*User)(nil)).
			Set("password_hash = ?", hash).
			Set("reset_token_id = NULL").
			Where("id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}

		return sm.repo.Tokens().RemoveTx(ctx, tx, token.ID)
	})

	if err != nil {
		return asRichError(err, "password reset transaction failed")
	}

	if expired {
		sm.logger.Warn("user %s presented an expired reset token", userID)
		return ErrTokenExpired
	}

	sm.logger.Info("user %s has reset their password", userID)
	return nil
}

// ProvisionGoogleUser matches an OAuth profile to an account, creating a
// verified one on first sign-in. An existing credentialed account with the
// same email is a conflict, never a silent link.
func (sm *SessionManager) ProvisionGoogleUser(ctx context.Context, profile GoogleProfile) (*User, error) {
	if profile.GoogleID == "" {
		return nil, ErrTokenInvalid
	}
	if profile.Email == "" {
		return nil, goerrors.New("google profile has no email", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if user, err := sm.repo.Users().GetByGoogleID(ctx, profile.GoogleID); err == nil {
		return user, nil
	} else if !goerrors.IsNotFound(err) {
		return nil, asRichError(err, "google lookup failed")
	}

	email := strings.ToLower(strings.TrimSpace(profile.Email))
	user := &User{}

	err := sm.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		taken, err := sm.repo.Users().ExistsByEmailTx(ctx, tx, email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailInUse
		}

		username, err := sm.resolveUsername(ctx, tx, "", email)
		if err != nil {
			return err
		}

		googleID := profile.GoogleID
		user.GoogleID = &googleID
		user.Email = email
		user.Username = username
		user.IsVerified = true
		if name := parseDisplayName(profile.DisplayName); name != "" {
			user.DisplayName = &name
		}

		if profile.PictureURL != "" {
			picture := &Picture{ID: uuid.New(), URL: profile.PictureURL}
			if picture, err = sm.repo.Pictures().CreateTx(ctx, tx, picture); err != nil {
				return err
			}
			user.PictureID = &picture.ID
		}

		if id, err := hashid.NewUUID(email); err == nil {
			user.ID = id
		} else {
			user.ID = uuid.New()
		}

		if user, err = sm.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return sm.grantRole(ctx, tx, user.ID, RoleUser)
	})

	if err != nil {
		return nil, asRichError(err, "google provisioning transaction failed")
	}

	sm.logger.Info("user %s has registered with Google", user.ID)
	return user, nil
}

// GoogleLogin issues a token pair for a Google-linked account.
func (sm *SessionManager) GoogleLogin(ctx context.Context, user *User) (*TokenPair, error) {
	if user == nil || !user.IsExternal() {
		return nil, goerrors.New("account is not linked to Google", goerrors.CategoryAuth).
			WithTextCode(TextCodeExternalAccount).
			WithCode(goerrors.CodeUnauthorized)
	}

	pair, err := sm.generatePair(user.ID)
	if err != nil {
		return nil, err
	}

	sm.logger.Info("user %s has logged in with Google", user.ID)
	return pair, nil
}

func (sm *SessionManager) generatePair(userID uuid.UUID) (*TokenPair, error) {
	accessToken, err := sm.access.Generate(userID.String())
	if err != nil {
		return nil, err
	}

	refreshToken, err := sm.refresh.Generate(userID.String())
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// resolveUsername returns the requested username if free, or derives one
// from the email's local part, suffixing until unique.
func (sm *SessionManager) resolveUsername(ctx context.Context, tx bun.IDB, requested, email string) (string, error) {
	if requested != "" {
		taken, err := sm.repo.Users().ExistsByUsernameTx(ctx, tx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", ErrUsernameInUse
		}
		return requested, nil
	}

	base := deriveUsername(email)
	candidate := base
	for attempt := 0; attempt < 5; attempt++ {
		taken, err := sm.repo.Users().ExistsByUsernameTx(ctx, tx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}

		suffix, err := randomHex(3)
		if err != nil {
			return "", err
		}
		if len(base) > UsernameMaxLen-len(suffix) {
			base = base[:UsernameMaxLen-len(suffix)]
		}
		candidate = base + suffix
	}

	return "", ErrUsernameInUse
}

func (sm *SessionManager) grantRole(ctx context.Context, tx bun.IDB, userID uuid.UUID, name RoleName) error {
	role, err := sm.repo.Roles().GetByNameTx(ctx, tx, name)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "role catalog is not seeded")
	}
	return sm.repo.Roles().AttachTx(ctx, tx, userID, role.ID)
}

func (sm *SessionManager) sendMail(send func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()
		if err := send(ctx); err != nil {
			sm.logger.Error("failed to send email: %s", err)
		}
	}()
}

// deriveUsername lowers the email local part and strips everything outside
// [a-z0-9], padding or clipping into the allowed length range.
func deriveUsername(email string) string {
	local := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		local = email[:at]
	}

	var b strings.Builder
	for _, r := range strings.ToLower(local) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	name := b.String()
	if len(name) > UsernameMaxLen {
		name = name[:UsernameMaxLen]
	}
	for len(name) < UsernameMinLen {
		name += "0"
	}
	return name
}

// parseDisplayName clips a display name into bounds, dropping ones too
// short to keep.
func parseDisplayName(displayName string) string {
	name := strings.TrimSpace(displayName)
	if len(name) < DisplayNameMinLen {
		return ""
	}
	if len(name) > DisplayNameMaxLen {
		name = name[:DisplayNameMaxLen]
	}
	return name
}
