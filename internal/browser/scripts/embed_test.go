package scripts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedScriptsLoaded(t *testing.T) {
	for name, src := range map[string]string{
		"resolve":       resolveScript,
		"select_option": selectOptionScript,
		"fetch_bytes":   fetchBytesScript,
	} {
		assert.NotEmpty(t, strings.TrimSpace(src), name)
	}
}

func TestCall_EncodesArguments(t *testing.T) {
	expr, err := SelectOption(`//*[@id='it\'s']`, `Sucursal "Centro"`)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(expr, "(function (xpath, wanted)"))
	assert.True(t, strings.HasSuffix(expr, `)("//*[@id='it\\'s']", "Sucursal \"Centro\"")`), expr)
}

func TestFetchBytes(t *testing.T) {
	expr, err := FetchBytes("https://portal.example.com/f.pdf?a=1&b=2")
	require.NoError(t, err)
	assert.Contains(t, expr, "credentials: 'include'")
	assert.True(t, strings.HasSuffix(expr, `("https://portal.example.com/f.pdf?a=1&b=2")`), expr)
}

func TestCall_EmptyScript(t *testing.T) {
	_, err := call("  ", "x")
	assert.Error(t, err)
}
