package blockdetect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
)

func TestInspect(t *testing.T) {
	detector := New(config.NewDefaultConfig().Detector())

	tests := []struct {
		name    string
		html    string
		blocked bool
		kind    string
		marker  string
	}{
		{
			name:    "reCAPTCHA iframe",
			html:    `<form><iframe src="https://www.google.com/recaptcha/api2/anchor?k=abc"></iframe></form>`,
			blocked: true, kind: KindChallengeFrame, marker: "recaptcha",
		},
		{
			name:    "hCaptcha iframe, mixed case",
			html:    `<iframe SRC="https://newassets.HCaptcha.com/captcha/v1/static/hcaptcha.html"></iframe>`,
			blocked: true, kind: KindChallengeFrame, marker: "hcaptcha",
		},
		{
			name:    "Turnstile iframe",
			html:    `<iframe src="https://challenges.cloudflare.com/cdn-cgi/challenge-platform/h/b/turnstile/if/ov2"></iframe>`,
			blocked: true, kind: KindChallengeFrame, marker: "challenges.cloudflare.com",
		},
		{
			name:    "Spanish verification phrase",
			html:    `<div class="check"><span>No soy un</span> robot</div>`,
			blocked: true, kind: KindVerifyPhrase, marker: "no soy un robot",
		},
		{
			name:    "English verification phrase",
			html:    `<p>Please verify you are human to continue.</p>`,
			blocked: true, kind: KindVerifyPhrase, marker: "verify you are human",
		},
		{
			name: "Phrase only inside a script",
			html: `<script>var label = "no soy un robot";</script><p>Factura</p>`,
		},
		{
			name: "Unrelated iframe",
			html: `<iframe src="https://maps.example.com/embed"></iframe><label>RFC</label><input>`,
		},
		{
			name: "Plain form",
			html: `<form><label for="r">RFC Receptor</label><input id="r"><button>Facturar</button></form>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := dom.ParseSnapshot("<html><body>" + tt.html + "</body></html>")
			require.NoError(t, err)

			verdict := detector.Inspect(doc)
			assert.Equal(t, tt.blocked, verdict.Blocked)
			assert.Equal(t, tt.blocked, detector.IsBlocked(doc))
			assert.Equal(t, tt.kind, verdict.Kind)
			assert.Equal(t, tt.marker, verdict.Marker)
		})
	}
}

func TestInspect_CustomMarkers(t *testing.T) {
	detector := New(config.DetectorConfig{
		Providers: []string{" Arkose ", ""},
		Phrases:   []string{"Prove you're a person"},
	})

	doc, err := dom.ParseSnapshot(`<html><body><iframe src="https://client-api.arkoselabs.com/fc"></iframe></body></html>`)
	require.NoError(t, err)
	assert.True(t, detector.IsBlocked(doc))

	doc, err = dom.ParseSnapshot(`<html><body><iframe src="https://www.google.com/recaptcha/api2"></iframe></body></html>`)
	require.NoError(t, err)
	assert.False(t, detector.IsBlocked(doc), "only configured providers are recognized")

	assert.False(t, detector.IsBlocked(nil))
}
