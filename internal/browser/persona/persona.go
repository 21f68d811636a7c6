// Package persona sets the language, timezone and user agent a page presents
// to the portal. Invoice portals localize labels and date formats from these,
// which the field dictionary depends on.
package persona

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/autoform/internal/config"
)

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Locale    string
	Timezone  string
}

// FromConfig reads the persona from the browser configuration.
func FromConfig(cfg config.BrowserConfig) Persona {
	return Persona{
		UserAgent: strings.TrimSpace(cfg.UserAgent),
		Locale:    strings.TrimSpace(cfg.Locale),
		Timezone:  strings.TrimSpace(cfg.Timezone),
	}
}

// AcceptLanguage renders the Accept-Language header for the locale, with the
// bare language as a weighted fallback ("es-MX" -> "es-MX,es;q=0.9").
func (p Persona) AcceptLanguage() string {
	if p.Locale == "" {
		return ""
	}
	lang, _, found := strings.Cut(p.Locale, "-")
	if !found || lang == "" {
		return p.Locale
	}
	return fmt.Sprintf("%s,%s;q=0.9", p.Locale, lang)
}

// Apply builds the CDP actions that install the persona on a fresh target.
// Empty fields are left at the browser's defaults.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser persona",
		zap.String("locale", p.Locale),
		zap.String("timezone", p.Timezone),
		zap.Bool("customUserAgent", p.UserAgent != ""),
	)

	var tasks chromedp.Tasks
	if p.UserAgent != "" {
		override := emulation.SetUserAgentOverride(p.UserAgent)
		if p.Locale != "" {
			override = override.WithAcceptLanguage(p.AcceptLanguage())
		}
		tasks = append(tasks, override)
	}
	if p.Locale != "" {
		tasks = append(tasks,
			emulation.SetLocaleOverride().WithLocale(strings.ReplaceAll(p.Locale, "-", "_")),
			network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": p.AcceptLanguage()}),
		)
	}
	if p.Timezone != "" {
		tz := p.Timezone
		tasks = append(tasks, chromedp.ActionFunc(func(ctx context.Context) error {
			if err := emulation.SetTimezoneOverride(tz).Do(ctx); err != nil {
				return fmt.Errorf("failed to set timezone %q: %w", tz, err)
			}
			return nil
		}))
	}
	return tasks
}
