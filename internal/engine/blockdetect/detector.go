// Package blockdetect recognizes CAPTCHA and human-verification challenges
// so automation can stop instead of fighting them.
package blockdetect

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
)

// Verdict describes a detection. Marker is the provider fragment or phrase
// that matched.
type Verdict struct {
	Blocked bool
	Kind    string
	Marker  string
}

const (
	KindChallengeFrame = "challenge-frame"
	KindVerifyPhrase   = "verification-phrase"
)

// Detector checks page snapshots for challenge markers.
type Detector struct {
	providers []string
	phrases   []string
}

// New creates a detector from the configured providers and phrases.
func New(cfg config.DetectorConfig) *Detector {
	return &Detector{
		providers: lowerNonEmpty(cfg.Providers),
		phrases:   lowerNonEmpty(cfg.Phrases),
	}
}

// Inspect reports whether the snapshot shows a challenge: an iframe loaded
// from a known provider, or visible text containing a verification phrase.
func (d *Detector) Inspect(doc *html.Node) Verdict {
	if doc == nil {
		return Verdict{}
	}
	gq := goquery.NewDocumentFromNode(doc)

	var verdict Verdict
	gq.Find("iframe[src]").EachWithBreak(func(_ int, frame *goquery.Selection) bool {
		src := strings.ToLower(frame.AttrOr("src", ""))
		for _, p := range d.providers {
			if strings.Contains(src, p) {
				verdict = Verdict{Blocked: true, Kind: KindChallengeFrame, Marker: p}
				return false
			}
		}
		return true
	})
	if verdict.Blocked {
		return verdict
	}

	text := strings.ToLower(dom.VisibleText(doc))
	for _, phrase := range d.phrases {
		if strings.Contains(text, phrase) {
			return Verdict{Blocked: true, Kind: KindVerifyPhrase, Marker: phrase}
		}
	}
	return Verdict{}
}

// IsBlocked is shorthand for Inspect(doc).Blocked.
func (d *Detector) IsBlocked(doc *html.Node) bool {
	return d.Inspect(doc).Blocked
}

func lowerNonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
