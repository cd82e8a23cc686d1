// Package i18n localizes API messages. Message IDs are the error codes of
// package apperr plus a handful of success messages.
package i18n

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

type ctxKey struct{}

// Catalog holds the parsed translations and the fallback language.
type Catalog struct {
	bundle   *i18n.Bundle
	fallback string
}

// Load parses every embedded locale file. fallback is used when a request
// names no supported language.
func Load(fallback string) (*Catalog, error) {
	tag, err := language.Parse(fallback)
	if err != nil {
		return nil, fmt.Errorf("parse language %q: %w", fallback, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	files, err := fs.Glob(localeFS, "locales/*.json")
	if err != nil {
		return nil, fmt.Errorf("list locales: %w", err)
	}
	for _, name := range files {
		data, err := localeFS.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("read locale file %s: %w", name, err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, path.Base(name)); err != nil {
			return nil, fmt.Errorf("parse locale file %s: %w", name, err)
		}
		slog.Debug("loaded locale file", "file", name)
	}
	return &Catalog{bundle: bundle, fallback: tag.String()}, nil
}

// Languages returns the tags with loaded translations.
func (c *Catalog) Languages() []language.Tag {
	return c.bundle.LanguageTags()
}

// Localizer returns a localizer preferring langs in order, then the fallback.
// Each entry may be a tag or a full Accept-Language header value.
func (c *Catalog) Localizer(langs ...string) *i18n.Localizer {
	return i18n.NewLocalizer(c.bundle, append(langs, c.fallback)...)
}

// WithLocalizer stores a localizer in the context.
func WithLocalizer(ctx context.Context, loc *i18n.Localizer) context.Context {
	return context.WithValue(ctx, ctxKey{}, loc)
}

func localizerFromCtx(ctx context.Context) *i18n.Localizer {
	loc, _ := ctx.Value(ctxKey{}).(*i18n.Localizer)
	return loc
}

// T translates a message by ID. Without a localizer in ctx, or when the ID is
// unknown, the ID itself is returned.
func T(ctx context.Context, msgID string) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID})
}

// Td translates a message by ID with template data.
func Td(ctx context.Context, msgID string, data map[string]any) string {
	return localize(ctx, &i18n.LocalizeConfig{MessageID: msgID, TemplateData: data})
}

// Tp translates a pluralized message by ID. Count is available to the
// template as .Count.
func Tp(ctx context.Context, msgID string, count int) string {
	return localize(ctx, &i18n.LocalizeConfig{
		MessageID:    msgID,
		PluralCount:  count,
		TemplateData: map[string]any{"Count": count},
	})
}

func localize(ctx context.Context, cfg *i18n.LocalizeConfig) string {
	loc := localizerFromCtx(ctx)
	if loc == nil {
		return cfg.MessageID
	}
	s, err := loc.Localize(cfg)
	if err != nil {
		slog.Warn("missing translation", "id", cfg.MessageID, "error", err)
		return cfg.MessageID
	}
	return s
}
