// Package prefs reads and writes the two persisted display preferences:
// locale and theme. Values are read once at startup and written on every
// explicit toggle.
package prefs

import (
	"context"
	"fmt"
	"strings"

	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/storage"
)

const (
	keyLocale = "locale"
	keyTheme  = "theme"
)

// Theme is the terminal palette.
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// ParseTheme accepts "dark" or "light".
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case Dark:
		return Dark, nil
	case Light:
		return Light, nil
	default:
		return Dark, fmt.Errorf("unknown theme %q (want dark or light)", s)
	}
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == Light {
		return Dark
	}
	return Light
}

// Prefs is the loaded preference set.
type Prefs struct {
	Locale locale.Locale
	Theme  Theme
}

// Defaults is used when nothing has been stored yet.
var Defaults = Prefs{Locale: locale.Default, Theme: Dark}

// Store wraps a storage.Store with typed accessors.
type Store struct {
	kv storage.Store
}

// New creates a preference store over kv.
func New(kv storage.Store) *Store {
	return &Store{kv: kv}
}

// Load reads both preferences. Missing or unreadable values fall back to
// Defaults; only storage errors are returned.
func (s *Store) Load(ctx context.Context) (Prefs, error) {
	p := Defaults

	if v, ok, err := s.kv.GetPref(ctx, keyLocale); err != nil {
		return p, err
	} else if ok {
		if l, perr := locale.Parse(v); perr == nil {
			p.Locale = l
		}
	}

	if v, ok, err := s.kv.GetPref(ctx, keyTheme); err != nil {
		return p, err
	} else if ok {
		if t, perr := ParseTheme(v); perr == nil {
			p.Theme = t
		}
	}
	return p, nil
}

// SaveLocale persists the locale.
func (s *Store) SaveLocale(ctx context.Context, l locale.Locale) error {
	return s.kv.PutPref(ctx, keyLocale, l.String())
}

// SaveTheme persists the theme.
func (s *Store) SaveTheme(ctx context.Context, t Theme) error {
	return s.kv.PutPref(ctx, keyTheme, string(t))
}

// Stored lists the preferences that were explicitly saved, with the time of
// the last change.
func (s *Store) Stored(ctx context.Context) ([]storage.Pref, error) {
	return s.kv.Prefs(ctx)
}

// Reset forgets both preferences so the next Load returns Defaults.
func (s *Store) Reset(ctx context.Context) error {
	for _, k := range []string{keyLocale, keyTheme} {
		if err := s.kv.DeletePref(ctx, k); err != nil {
			return fmt.Errorf("reset %s: %w", k, err)
		}
	}
	return nil
}
