package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// ParseSnapshot parses serialized page HTML into a node tree.
func ParseSnapshot(source string) (*html.Node, error) {
	doc, err := htmlquery.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("failed to parse DOM snapshot: %w", err)
	}
	return doc, nil
}

// nonRendered lists elements whose text never shows on the page.
var nonRendered = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
}

// inline elements do not break words apart when their text is joined.
var inline = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true, "cite": true, "code": true,
	"em": true, "font": true, "i": true, "kbd": true, "mark": true, "q": true, "s": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true, "u": true,
}

// VisibleText returns the text a user could read under node, with runs of
// whitespace collapsed to single spaces.
func VisibleText(node *html.Node) string {
	if node == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			return
		case html.ElementNode:
			if nonRendered[strings.ToLower(n.Data)] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && !inline[strings.ToLower(n.Data)] {
			b.WriteByte(' ')
		}
	}
	walk(node)
	return strings.Join(strings.Fields(b.String()), " ")
}

// Attr returns the attribute value of an element, or "".
func Attr(n *html.Node, name string) string {
	return htmlquery.SelectAttr(n, name)
}

// Tag returns the lowercase tag name of an element.
func Tag(n *html.Node) string {
	if n == nil || n.Type != html.ElementNode {
		return ""
	}
	return strings.ToLower(n.Data)
}
