package dom_test

import (
	"strings"
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/autoform/internal/browser/dom"
)

const testHTML = `
	<html>
	<body>
		<div id="header">
			<h1>Factura electrónica</h1>
		</div>
		<form>
			<div><label for="rfc">RFC Receptor</label><input id="rfc" name="rfc"></div>
			<div><input name="total"><input name="fecha" type="date"></div>
			<div><input id="dup" name="a"><input id="dup" name="b"></div>
			<select name="uso"><option>G03</option></select>
		</form>
	</body>
	</html>
	`

func parse(t *testing.T, source string) *html.Node {
	t.Helper()
	doc, err := dom.ParseSnapshot(source)
	require.NoError(t, err)
	return doc
}

func TestAddressOf(t *testing.T) {
	doc := parse(t, testHTML)

	tests := []struct {
		name     string
		target   string
		expected dom.Address
	}{
		{"Unique id", "//input[@name='rfc']", `//*[@id='rfc']`},
		{"Element with id above", "//h1", "/html/body/div/h1"},
		{"Single child has no index", "//select", "/html/body/form/select"},
		{"Same-tag siblings get an index", "//input[@name='fecha']", "/html/body/form/div[2]/input[2]"},
		{"Duplicated id falls back to path", "//input[@name='b']", "/html/body/form/div[3]/input[2]"},
		{"Body", "//body", "/html/body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := htmlquery.FindOne(doc, tt.target)
			require.NotNil(t, target, "test setup: %s not found", tt.target)

			addr := dom.AddressOf(target)
			assert.Equal(t, tt.expected, addr)

			resolved, err := dom.Resolve(doc, addr)
			require.NoError(t, err)
			assert.Same(t, target, resolved, "address must resolve back to the same element")
		})
	}
}

func TestAddressOf_QuotedID(t *testing.T) {
	doc := parse(t, `<html><body><input id="it's"><input id='say "hi" it&#39;s'></body></html>`)

	single := htmlquery.FindOne(doc, `//input[1]`)
	addr := dom.AddressOf(single)
	assert.Equal(t, dom.Address(`//*[@id="it's"]`), addr)

	// Both quote characters cannot be expressed as a literal; the path is used instead.
	both := htmlquery.FindOne(doc, `//input[2]`)
	assert.Equal(t, dom.Address("/html/body/input[2]"), dom.AddressOf(both))
}

func TestAddressOf_NonElement(t *testing.T) {
	doc := parse(t, testHTML)
	assert.Equal(t, dom.Address(""), dom.AddressOf(nil))
	assert.Equal(t, dom.Address(""), dom.AddressOf(doc))
}

func TestResolve(t *testing.T) {
	doc := parse(t, testHTML)

	t.Run("Missing element", func(t *testing.T) {
		_, err := dom.Resolve(doc, "/html/body/form/div[9]/input")
		assert.ErrorIs(t, err, dom.ErrNotFound)
	})

	t.Run("Empty address", func(t *testing.T) {
		_, err := dom.Resolve(doc, "")
		assert.ErrorIs(t, err, dom.ErrNotFound)
	})

	t.Run("Malformed address", func(t *testing.T) {
		_, err := dom.Resolve(doc, "//*[@id=")
		require.Error(t, err)
		assert.NotErrorIs(t, err, dom.ErrNotFound)
	})

	t.Run("Structure changed between snapshots", func(t *testing.T) {
		target := htmlquery.FindOne(doc, "//input[@name='fecha']")
		addr := dom.AddressOf(target)

		changed := parse(t, `<html><body><form><div></div><div><input name="total"></div></form></body></html>`)
		_, err := dom.Resolve(changed, addr)
		assert.ErrorIs(t, err, dom.ErrNotFound)
	})
}

func TestVisibleText(t *testing.T) {
	doc := parse(t, `<html><head><title>T</title><style>.x{}</style></head>
		<body><p>Confirma que <b>no soy</b> un robot</p><script>var robot = 1;</script>
		<div>uno</div><div>dos</div></body></html>`)

	text := dom.VisibleText(doc)
	assert.Contains(t, text, "Confirma que no soy un robot")
	assert.Contains(t, text, "uno dos")
	assert.NotContains(t, text, "var robot")
	assert.NotContains(t, text, ".x{}")
}

// FuzzAddressRoundTrip builds random form trees and checks that every
// element's address resolves back to that element.
func FuzzAddressRoundTrip(f *testing.F) {
	f.Add([]byte("seed-input-data-for-forms"))
	f.Fuzz(func(t *testing.T, data []byte) {
		consumer := fuzz.NewConsumer(data)
		var layout struct {
			Groups []struct {
				Inputs int
				IDs    []string
			}
		}
		if err := consumer.GenerateStruct(&layout); err != nil {
			return
		}

		var b strings.Builder
		b.WriteString("<html><body><form>")
		for gi, g := range layout.Groups {
			if gi > 8 {
				break
			}
			b.WriteString("<div>")
			for i := 0; i < g.Inputs%6; i++ {
				b.WriteString("<input")
				if i < len(g.IDs) {
					b.WriteString(` id="` + html.EscapeString(g.IDs[i]) + `"`)
				}
				b.WriteString(">")
			}
			b.WriteString("</div>")
		}
		b.WriteString("</form></body></html>")

		doc, err := dom.ParseSnapshot(b.String())
		if err != nil {
			return
		}
		for _, input := range htmlquery.Find(doc, "//input") {
			addr := dom.AddressOf(input)
			resolved, err := dom.Resolve(doc, addr)
			if err != nil {
				t.Fatalf("address %q did not resolve: %v", addr, err)
			}
			if resolved != input {
				t.Fatalf("address %q resolved to a different element", addr)
			}
		}
	})
}
