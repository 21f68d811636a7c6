// Package scoring ranks the form controls of a page snapshot by how well
// they match a set of keywords.
package scoring

import (
	"sort"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
)

// Candidate is a scored, addressable form control. It only lives for the
// duration of one snapshot evaluation.
type Candidate struct {
	Score   int
	Address dom.Address
	// Tag is the lowercase element name, "input", "textarea" or "select".
	Tag string
}

// IsSelect reports whether the candidate is a selection control.
func (c Candidate) IsSelect() bool { return c.Tag == "select" }

// typeableInputs are the input types a value can be typed into. An input
// without a type attribute is a text input.
var typeableInputs = map[string]bool{
	"":               true,
	"text":           true,
	"search":         true,
	"tel":            true,
	"number":         true,
	"email":          true,
	"url":            true,
	"date":           true,
	"datetime-local": true,
	"month":          true,
	"week":           true,
	"time":           true,
}

// Scorer applies the weighted affinity rules. It holds no per-page state and
// may be shared.
type Scorer struct {
	cfg config.ScoringConfig
}

// NewScorer creates a scorer from the scoring configuration.
func NewScorer(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score returns the best matching controls for keywords, best first. Controls
// scoring zero are dropped, ties keep document order and the result is capped
// at the configured maximum.
func (s *Scorer) Score(doc *html.Node, keywords []string) []Candidate {
	kws := lowerAll(keywords)
	if doc == nil || len(kws) == 0 {
		return nil
	}

	emailConcept := anyContains(kws, s.cfg.EmailMarkers)
	dateConcept := anyContains(kws, s.cfg.DateMarkers)

	var candidates []Candidate
	for _, node := range htmlquery.Find(doc, "//input | //textarea | //select") {
		if !isFormCapable(node) {
			continue
		}
		score := s.scoreNode(doc, node, kws, emailConcept, dateConcept)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Score:   score,
			Address: dom.AddressOf(node),
			Tag:     dom.Tag(node),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if limit := s.cfg.MaxCandidates; limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func (s *Scorer) scoreNode(doc, node *html.Node, kws []string, emailConcept, dateConcept bool) int {
	score := 0

	// 1. An explicit <label for=...> pointing at the control.
	if id := dom.Attr(node, "id"); id != "" {
		if label := labelFor(doc, id); label != nil {
			score += s.cfg.LabelForWeight * countContained(labelText(label), kws)
		}
	}

	// 2. Enclosing <label> wrappers, up to but excluding <body>.
	for p := node.Parent; p != nil && p.Type == html.ElementNode && dom.Tag(p) != "body"; p = p.Parent {
		if dom.Tag(p) == "label" {
			score += s.cfg.AncestorLabelWeight * countContained(labelText(p), kws)
		}
	}

	// 3. Free-text attributes.
	attrs := strings.ToLower(strings.Join([]string{
		dom.Attr(node, "name"),
		dom.Attr(node, "id"),
		dom.Attr(node, "placeholder"),
		dom.Attr(node, "aria-label"),
	}, " "))
	score += s.cfg.AttributeWeight * countContained(attrs, kws)

	// 4. Declared input type.
	inputType := strings.ToLower(dom.Attr(node, "type"))
	if emailConcept && inputType == "email" {
		score += s.cfg.TypeAffinityWeight
	}
	if dateConcept && (inputType == "date" || inputType == "datetime-local") {
		score += s.cfg.TypeAffinityWeight
	}
	return score
}

func isFormCapable(node *html.Node) bool {
	switch dom.Tag(node) {
	case "textarea", "select":
		return true
	case "input":
		return typeableInputs[strings.ToLower(strings.TrimSpace(dom.Attr(node, "type")))]
	}
	return false
}

// labelFor returns the first label whose for attribute names id.
func labelFor(doc *html.Node, id string) *html.Node {
	for _, label := range htmlquery.Find(doc, "//label[@for]") {
		if dom.Attr(label, "for") == id {
			return label
		}
	}
	return nil
}

func labelText(n *html.Node) string {
	return strings.ToLower(htmlquery.InnerText(n))
}

func countContained(text string, kws []string) int {
	if text == "" {
		return 0
	}
	n := 0
	for _, kw := range kws {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func anyContains(kws, markers []string) bool {
	for _, kw := range kws {
		for _, m := range markers {
			if m != "" && strings.Contains(kw, strings.ToLower(m)) {
				return true
			}
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
