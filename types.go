package identity

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Mailer delivers account lifecycle email. Implementations are fire-and-forget
// from the caller's perspective: delivery failures are logged, never surfaced
// to the operation that triggered them.
type Mailer interface {
	SendEmailVerification(ctx context.Context, email, token string) error
	SendPasswordReset(ctx context.Context, email, token string) error
}

// Translator resolves a message key to a locale-appropriate string. The core
// treats it as an opaque pure function.
type Translator interface {
	T(key string, args ...any) string
}

// TranslatorFunc adapts a function into a Translator.
type TranslatorFunc func(key string, args ...any) string

func (f TranslatorFunc) T(key string, args ...any) string {
	if f == nil {
		return key
	}
	return f(key, args...)
}

// DefaultLogger returns the stdout fallback logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

type noopMailer struct{}

func (noopMailer) SendEmailVerification(context.Context, string, string) error { return nil }
func (noopMailer) SendPasswordReset(context.Context, string, string) error     { return nil }
