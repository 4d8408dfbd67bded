// Package httpapi exposes the identity flows over HTTP: credential and
// Google sign-in, session lifecycle, and account management endpoints.
package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	identity "github.com/goliatone/go-identity"
	"github.com/goliatone/go-identity/social"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Patch(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Put(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// Controller wires the identity services into HTTP handlers.
type Controller struct {
	Debug        bool
	Logger       identity.Logger
	Sessions     *identity.SessionManager
	Users        *identity.UsersService
	Repo         identity.RepositoryManager
	AccessTokens identity.TokenService
	Provider     social.Provider
	States       social.StateManager
	Translate    identity.Translator
	Config       identity.Config
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller) *Controller

func WithLogger(logger identity.Logger) ControllerOption {
	return func(c *Controller) *Controller {
		c.Logger = logger
		return c
	}
}

func WithProvider(provider social.Provider, states social.StateManager) ControllerOption {
	return func(c *Controller) *Controller {
		c.Provider = provider
		c.States = states
		return c
	}
}

func WithTranslator(t identity.Translator) ControllerOption {
	return func(c *Controller) *Controller {
		c.Translate = t
		return c
	}
}

func WithDebug(debug bool) ControllerOption {
	return func(c *Controller) *Controller {
		c.Debug = debug
		return c
	}
}

func NewController(
	sessions *identity.SessionManager,
	users *identity.UsersService,
	repo identity.RepositoryManager,
	accessTokens identity.TokenService,
	cfg identity.Config,
	opts ...ControllerOption,
) *Controller {
	c := &Controller{
		Sessions:     sessions,
		Users:        users,
		Repo:         repo,
		AccessTokens: accessTokens,
		Config:       cfg,
		Translate:    identity.NewTranslator(identity.MatchLanguage("")),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Logger == nil {
		c.Logger = identity.DefaultLogger()
	}

	if c.Sessions == nil {
		panic("Missing SessionManager in identity controller...")
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in identity controller...")
	}

	return c
}

// RegisterRoutes mounts every identity endpoint on the registrar.
func (c *Controller) RegisterRoutes(auth, users RouteRegistrar) {
	session := c.RequireSession()

	auth.Post("/register", c.RegisterPost)
	auth.Post("/login", c.LoginPost)
	auth.Post("/logout", c.LogoutPost)
	auth.Post("/refresh", c.RefreshPost)
	auth.Post("/verify-email", c.VerifyEmailPost)
	auth.Post("/forgot-password", c.ForgotPasswordPost)
	auth.Post("/reset-password", c.ResetPasswordPost)
	auth.Get("/me", c.MeGet, session)

	if c.Provider != nil {
		auth.Get("/google", c.GoogleRedirect)
		auth.Get("/google/callback", c.GoogleCallback)
	}

	users.Get("/", c.UsersIndex, session, c.RequireRoles(identity.RoleAdmin))
	users.Get("/:identifier", c.UserShow, session)
	users.Patch("/:identifier", c.UserUpdate, session)
	users.Delete("/:identifier", c.UserDelete, session)
	users.Put("/:identifier/picture", c.UserPictureUpdate, session)
	users.Delete("/:identifier/picture", c.UserPictureDelete, session)
}

func (c *Controller) RegisterPost(ctx router.Context) error {
	payload := new(RegisterRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.writeError(ctx, invalidPayload(err))
	}

	if c.Debug {
		fmt.Println(print.MaybePrettyJSON(payload))
	}

	user, err := c.Sessions.Register(ctx.Context(), identity.RegisterInput{
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		Email:       payload.Email,
		Password:    payload.Password,
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusCreated, map[string]any{
		"message": c.t(ctx, "auth.register.success"),
		"user":    user,
	})
}

func (c *Controller) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.writeError(ctx, invalidPayload(err))
	}

	pair, err := c.Sessions.Login(ctx.Context(), payload.Identifier, payload.Password)
	if err != nil {
		return c.writeError(ctx, err)
	}

	c.setSessionCookies(ctx, pair)

	return ctx.JSON(router.StatusOK, map[string]any{
		"message":       c.t(ctx, "auth.login.success"),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (c *Controller) LogoutPost(ctx router.Context) error {
	accessToken := extractAccessToken(ctx)
	refreshToken := ctx.Cookies(RefreshTokenCookie)
	if refreshToken == "" {
		refreshToken = ctx.Query("refresh_token", "")
	}

	if err := c.Sessions.Logout(ctx.Context(), accessToken, refreshToken); err != nil {
		return c.writeError(ctx, err)
	}

	c.clearSessionCookies(ctx)

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": c.t(ctx, "auth.logout.success"),
	})
}

func (c *Controller) RefreshPost(ctx router.Context) error {
	refreshToken := ctx.Cookies(RefreshTokenCookie)
	if refreshToken == "" {
		refreshToken = ctx.Query("refresh_token", "")
	}

	pair, err := c.Sessions.RefreshTokens(ctx.Context(), refreshToken)
	if err != nil {
		return c.writeError(ctx, err)
	}

	c.setSessionCookies(ctx, pair)

	return ctx.JSON(router.StatusOK, map[string]any{
		"message":       c.t(ctx, "auth.refresh.success"),
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (c *Controller) VerifyEmailPost(ctx router.Context) error {
	payload := new(VerifyEmailRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}
	if payload.Token == "" {
		payload.Token = ctx.Query("token", "")
	}

	if err := payload.Validate(); err != nil {
		return c.writeError(ctx, invalidPayload(err))
	}

	if err := c.Sessions.VerifyEmail(ctx.Context(), payload.Token); err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": c.t(ctx, "auth.verify_email.success"),
	})
}

func (c *Controller) ForgotPasswordPost(ctx router.Context) error {
	payload := new(ForgotPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}

	if err := payload.Validate(); err != nil {
		return c.writeError(ctx, invalidPayload(err))
	}

	if err := c.Sessions.ForgotPassword(ctx.Context(), payload.Email); err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": c.t(ctx, "auth.forgot_password.success"),
	})
}

func (c *Controller) ResetPasswordPost(ctx router.Context) error {
	payload := new(ResetPasswordRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}
	if payload.Token == "" {
		payload.Token = ctx.Query("token", "")
	}

	if err := payload.Validate(); err != nil {
		return c.writeError(ctx, invalidPayload(err))
	}

	if err := c.Sessions.ResetPassword(ctx.Context(), payload.Token, payload.Password); err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]string{
		"message": c.t(ctx, "auth.reset_password.success"),
	})
}

// GoogleRedirect starts the OAuth consent flow.
func (c *Controller) GoogleRedirect(ctx router.Context) error {
	redirectURL := ctx.Query("redirect_url", "")
	if redirectURL == "" {
		redirectURL = c.Config.LoginRedirectURL
	}

	state, err := c.States.Encode(&social.State{
		Provider:    c.Provider.Name(),
		RedirectURL: redirectURL,
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.Redirect(c.Provider.AuthCodeURL(state), router.StatusTemporaryRedirect)
}

// GoogleCallback finishes the OAuth flow: state check, code exchange,
// profile fetch, account provisioning, session issue.
func (c *Controller) GoogleCallback(ctx router.Context) error {
	if errCode := ctx.Query("error", ""); errCode != "" {
		return c.writeError(ctx, social.ErrTokenExchangeFailed)
	}

	state, err := c.States.Decode(ctx.Query("state", ""))
	if err != nil {
		return c.writeError(ctx, err)
	}

	token, err := c.Provider.Exchange(ctx.Context(), ctx.Query("code", ""))
	if err != nil {
		return c.writeError(ctx, err)
	}

	profile, err := c.Provider.UserInfo(ctx.Context(), token)
	if err != nil {
		return c.writeError(ctx, err)
	}

	user, err := c.Sessions.ProvisionGoogleUser(ctx.Context(), identity.GoogleProfile{
		GoogleID:    profile.ProviderUserID,
		Email:       profile.Email,
		DisplayName: profile.Name,
		PictureURL:  profile.AvatarURL,
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	pair, err := c.Sessions.GoogleLogin(ctx.Context(), user)
	if err != nil {
		return c.writeError(ctx, err)
	}

	c.setSessionCookies(ctx, pair)

	redirect := state.RedirectURL
	if redirect == "" {
		redirect = c.Config.LoginRedirectURL
	}

	return ctx.Redirect(redirect, router.StatusSeeOther)
}

// MeGet returns the authenticated account.
func (c *Controller) MeGet(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return c.writeError(ctx, identity.ErrTokenInvalid)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": user,
	})
}

func (c *Controller) UsersIndex(ctx router.Context) error {
	page, err := c.Users.FindAll(ctx.Context(), identity.ListUsersOptions{
		Page:    ctx.QueryInt("page", 1),
		Limit:   ctx.QueryInt("limit", 20),
		OrderBy: ctx.Query("order_by", ""),
		Order:   ctx.Query("order", ""),
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, page)
}

func (c *Controller) UserShow(ctx router.Context) error {
	user, err := c.Users.FindOne(ctx.Context(), ctx.Param("identifier"))
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"user": user,
	})
}

func (c *Controller) UserUpdate(ctx router.Context) error {
	identifier := ctx.Param("identifier")
	if _, err := c.requireSelfOrRole(ctx, identifier, identity.RoleAdmin); err != nil {
		return c.writeError(ctx, err)
	}

	payload := new(UpdateUserRequest)
	if err := ctx.Bind(payload); err != nil {
		return c.writeError(ctx, badPayload(err))
	}

	user, err := c.Users.Update(ctx.Context(), identifier, identity.UpdateUserInput{
		Username:    payload.Username,
		DisplayName: payload.DisplayName,
		Phone:       payload.Phone,
	})
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": c.t(ctx, "users.update.success"),
		"user":    user,
	})
}

func (c *Controller) UserDelete(ctx router.Context) error {
	identifier := ctx.Param("identifier")
	if _, err := c.requireSelfOrRole(ctx, identifier, identity.RoleAdmin); err != nil {
		return c.writeError(ctx, err)
	}

	user, err := c.Users.Delete(ctx.Context(), identifier)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": c.t(ctx, "users.delete.success"),
		"user":    user,
	})
}

func (c *Controller) UserPictureUpdate(ctx router.Context) error {
	identifier := ctx.Param("identifier")
	if _, err := c.requireSelfOrRole(ctx, identifier, identity.RoleAdmin); err != nil {
		return c.writeError(ctx, err)
	}

	body := ctx.Body()
	if len(body) == 0 {
		return c.writeError(ctx, badPayload(fmt.Errorf("empty picture body")))
	}

	contentType := ctx.GetString("Content-Type", "application/octet-stream")

	user, err := c.Users.UpdatePicture(ctx.Context(), identifier, contentType, bytes.NewReader(body))
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": c.t(ctx, "users.picture.updated"),
		"user":    user,
	})
}

func (c *Controller) UserPictureDelete(ctx router.Context) error {
	identifier := ctx.Param("identifier")
	if _, err := c.requireSelfOrRole(ctx, identifier, identity.RoleAdmin); err != nil {
		return c.writeError(ctx, err)
	}

	user, err := c.Users.DeletePicture(ctx.Context(), identifier)
	if err != nil {
		return c.writeError(ctx, err)
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"message": c.t(ctx, "users.picture.deleted"),
		"user":    user,
	})
}

func (c *Controller) setSessionCookies(ctx router.Context, pair *identity.TokenPair) {
	ctx.Cookie(&router.Cookie{
		Name:     AccessTokenCookie,
		Value:    pair.AccessToken,
		Expires:  time.Now().Add(c.Config.AccessTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
	ctx.Cookie(&router.Cookie{
		Name:     RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Expires:  time.Now().Add(c.Config.RefreshTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: "Strict",
	})
}

func (c *Controller) clearSessionCookies(ctx router.Context) {
	for _, name := range []string{AccessTokenCookie, RefreshTokenCookie} {
		ctx.Cookie(&router.Cookie{
			Name:     name,
			Value:    "",
			Expires:  time.Now().Add(-time.Hour * 24 * 365),
			HTTPOnly: true,
			Secure:   true,
			SameSite: "Strict",
		})
	}
}

// t resolves a message key in the request locale.
func (c *Controller) t(ctx router.Context, key string) string {
	accept := ctx.GetString("Accept-Language", "")
	if accept != "" {
		return identity.NewTranslator(identity.MatchLanguage(accept)).T(key)
	}
	return c.Translate.T(key)
}

func badPayload(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request payload").
		WithCode(goerrors.CodeBadRequest)
}

func invalidPayload(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid request payload").
		WithCode(goerrors.CodeBadRequest)
}

// writeError maps rich errors onto HTTP responses.
func (c *Controller) writeError(ctx router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "unexpected error").
			WithCode(goerrors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		c.Logger.Error("request failed: %s", err)
	}

	return ctx.JSON(status, map[string]any{
		"error":     richErr.Message,
		"text_code": richErr.TextCode,
	})
}
