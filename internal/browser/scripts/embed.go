// Package scripts holds the JavaScript evaluated inside pages.
package scripts

import (
	_ "embed"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

var (
	//go:embed resolve.js
	resolveScript string
	//go:embed select_option.js
	selectOptionScript string
	//go:embed fetch_bytes.js
	fetchBytesScript string
)

// Script arguments are embedded in JavaScript source, not HTML.
var json = jsoniter.Config{EscapeHTML: false}.Froze()

// Resolve builds an expression that reports whether xpath matches a
// connected element.
func Resolve(xpath string) (string, error) {
	return call(resolveScript, xpath)
}

// SelectOption builds an expression that selects the option of the select
// element at xpath whose value, or failing that whose text, matches value.
// It fires input and change events and evaluates to false when nothing
// matched.
func SelectOption(xpath, value string) (string, error) {
	return call(selectOptionScript, xpath, value)
}

// FetchBytes builds an expression that fetches url with the page's
// credentials and resolves to the body as base64. Non-2xx responses reject.
func FetchBytes(url string) (string, error) {
	return call(fetchBytesScript, url)
}

// call renders fn applied to JSON encoded args.
func call(fn string, args ...any) (string, error) {
	if strings.TrimSpace(fn) == "" {
		return "", fmt.Errorf("embedded script is empty or failed to load")
	}
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", fmt.Errorf("failed to encode script argument: %w", err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("%s(%s)", strings.TrimSpace(fn), strings.Join(encoded, ", ")), nil
}
