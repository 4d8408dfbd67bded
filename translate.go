package identity

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func init() {
	en := language.English

	message.SetString(en, "auth.login.success", "Logged in successfully")
	message.SetString(en, "auth.logout.success", "Logged out successfully")
	message.SetString(en, "auth.refresh.success", "Tokens refreshed successfully")
	message.SetString(en, "auth.register.success", "Registered successfully, check your inbox to verify your email")
	message.SetString(en, "auth.verify_email.success", "Email verified successfully")
	message.SetString(en, "auth.forgot_password.success", "If the account exists, a reset email is on its way")
	message.SetString(en, "auth.reset_password.success", "Password reset successfully")
	message.SetString(en, "auth.google.success", "Logged in with Google successfully")

	message.SetString(en, "users.update.success", "Profile updated successfully")
	message.SetString(en, "users.delete.success", "Account deleted successfully")
	message.SetString(en, "users.picture.updated", "Profile picture updated successfully")
	message.SetString(en, "users.picture.deleted", "Profile picture deleted successfully")

	es := language.Spanish

	message.SetString(es, "auth.login.success", "Sesión iniciada correctamente")
	message.SetString(es, "auth.logout.success", "Sesión cerrada correctamente")
	message.SetString(es, "auth.refresh.success", "Tokens renovados correctamente")
	message.SetString(es, "auth.register.success", "Registro completado, revisa tu correo para verificar tu email")
	message.SetString(es, "auth.verify_email.success", "Email verificado correctamente")
	message.SetString(es, "auth.forgot_password.success", "Si la cuenta existe, recibirás un correo de recuperación")
	message.SetString(es, "auth.reset_password.success", "Contraseña restablecida correctamente")
	message.SetString(es, "auth.google.success", "Sesión iniciada con Google correctamente")

	message.SetString(es, "users.update.success", "Perfil actualizado correctamente")
	message.SetString(es, "users.delete.success", "Cuenta eliminada correctamente")
	message.SetString(es, "users.picture.updated", "Foto de perfil actualizada correctamente")
	message.SetString(es, "users.picture.deleted", "Foto de perfil eliminada correctamente")
}

// SupportedLanguages lists the locales with registered message catalogs.
func SupportedLanguages() []language.Tag {
	return []language.Tag{language.English, language.Spanish}
}

var langMatcher = language.NewMatcher(SupportedLanguages())

// MatchLanguage resolves an Accept-Language header value to a supported tag.
func MatchLanguage(accept string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	tag, _, _ := langMatcher.Match(tags...)
	return tag
}

// NewTranslator returns a Translator for the given locale. Unregistered keys
// come back verbatim, so callers can always fall back to the key itself.
func NewTranslator(tag language.Tag) Translator {
	printer := message.NewPrinter(tag)
	return TranslatorFunc(func(key string, args ...any) string {
		return printer.Sprintf(key, args...)
	})
}
