// Package submit finds the control that submits a filled form.
package submit

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
)

// Match is the control chosen for submission.
type Match struct {
	Address  dom.Address
	Text     string
	Selector string
}

// Locator scans clickable control categories, in a fixed order, for text
// containing an action term.
type Locator struct {
	selectors []string
	terms     []string
}

// New creates a Locator from the submit configuration.
func New(cfg config.SubmitConfig) *Locator {
	terms := make([]string, 0, len(cfg.Terms))
	for _, t := range cfg.Terms {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			terms = append(terms, t)
		}
	}
	return &Locator{selectors: cfg.Selectors, terms: terms}
}

// Find returns the first visible control whose text contains an action term.
// Categories are searched in order and elements within a category in
// document order. ok is false when nothing matches.
func (l *Locator) Find(doc *html.Node) (match Match, ok bool) {
	if doc == nil {
		return Match{}, false
	}
	gq := goquery.NewDocumentFromNode(doc)

	for _, selector := range l.selectors {
		gq.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if !visible(sel) {
				return true
			}
			text := controlText(sel)
			if text == "" || !l.hasTerm(text) {
				return true
			}
			match = Match{Address: dom.AddressOf(sel.Get(0)), Text: text, Selector: selector}
			ok = true
			return false
		})
		if ok {
			return match, true
		}
	}
	return Match{}, false
}

func (l *Locator) hasTerm(text string) bool {
	for _, term := range l.terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// controlText is the lowercase rendered text of the control, or its value
// for input elements.
func controlText(sel *goquery.Selection) string {
	node := sel.Get(0)
	text := dom.VisibleText(node)
	if text == "" {
		text = sel.AttrOr("value", "")
	}
	return strings.ToLower(strings.TrimSpace(text))
}

// visible rejects controls hidden or disabled through their own markup.
func visible(sel *goquery.Selection) bool {
	if _, hidden := sel.Attr("hidden"); hidden {
		return false
	}
	if _, disabled := sel.Attr("disabled"); disabled {
		return false
	}
	if strings.EqualFold(sel.AttrOr("type", ""), "hidden") || sel.AttrOr("aria-hidden", "") == "true" {
		return false
	}
	style := strings.ReplaceAll(strings.ToLower(sel.AttrOr("style", "")), " ", "")
	return !strings.Contains(style, "display:none") && !strings.Contains(style, "visibility:hidden")
}
