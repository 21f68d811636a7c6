// browser/dom/xpath.go
package dom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ErrNotFound is returned when an address no longer matches any element.
var ErrNotFound = errors.New("dom: address did not resolve to an element")

// Address is a stable, re-resolvable XPath locator for an element. It never
// holds a reference to a node, so it can be carried across asynchronous steps
// and resolved again against a fresh snapshot or the live page.
type Address string

func (a Address) String() string { return string(a) }

// AddressOf computes the address of an element node.
//
// An element whose id is unique in its document is addressed by that id.
// Otherwise the address is an absolute path from the root, where each step is
// the lowercase tag name qualified with a 1-based position only when the
// element has same-tag siblings.
func AddressOf(node *html.Node) Address {
	if node == nil || node.Type != html.ElementNode {
		return ""
	}
	if id := htmlquery.SelectAttr(node, "id"); id != "" {
		if lit, ok := quoteLiteral(id); ok && countByID(root(node), lit) == 1 {
			return Address(fmt.Sprintf("//*[@id=%s]", lit))
		}
	}
	return structuralPath(node)
}

// Resolve finds the element an address points to in a parsed snapshot.
func Resolve(doc *html.Node, addr Address) (*html.Node, error) {
	if addr == "" {
		return nil, ErrNotFound
	}
	node, err := htmlquery.Query(doc, addr.String())
	if err != nil {
		return nil, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if node == nil {
		return nil, ErrNotFound
	}
	return node, nil
}

func structuralPath(node *html.Node) Address {
	var steps []string
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)
		position, total := siblingPosition(n, tag)
		if total > 1 {
			steps = append(steps, fmt.Sprintf("%s[%d]", tag, position))
		} else {
			steps = append(steps, tag)
		}
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return Address("/" + strings.Join(steps, "/"))
}

// siblingPosition returns the 1-based position of n among its same-tag
// element siblings, and how many such siblings exist (n included).
func siblingPosition(n *html.Node, tag string) (position, total int) {
	if n.Parent == nil {
		return 1, 1
	}
	for s := n.Parent.FirstChild; s != nil; s = s.NextSibling {
		if s.Type != html.ElementNode || strings.ToLower(s.Data) != tag {
			continue
		}
		total++
		if s == n {
			position = total
		}
	}
	return position, total
}

func root(n *html.Node) *html.Node {
	for n.Parent != nil {
		n = n.Parent
	}
	return n
}

func countByID(doc *html.Node, lit string) int {
	nodes, err := htmlquery.QueryAll(doc, fmt.Sprintf("//*[@id=%s]", lit))
	if err != nil {
		return 0
	}
	return len(nodes)
}

// quoteLiteral wraps s as an XPath 1.0 string literal. Values holding both
// quote characters cannot be expressed without concat() and are rejected.
func quoteLiteral(s string) (string, bool) {
	switch {
	case !strings.Contains(s, "'"):
		return "'" + s + "'", true
	case !strings.Contains(s, `"`):
		return `"` + s + `"`, true
	default:
		return "", false
	}
}
