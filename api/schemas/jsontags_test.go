package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/autoform/api/schemas"
)

// TestStructJSONTags uses reflection to verify that the `json` tags on struct fields
// are correct. This is critical for ensuring API contract stability.
func TestStructJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "FillPlan",
			structRef: schemas.FillPlan{},
			expectedTags: map[string]string{
				"Mode":      "mode",
				"PortalURL": "portal_url",
				"Payload":   "payload",
			},
		},
		{
			name:      "FieldReport",
			structRef: schemas.FieldReport{},
			expectedTags: map[string]string{
				"OK":       "ok",
				"Value":    "value",
				"Synonyms": "syns",
			},
		},
		{
			name:      "LogEntry",
			structRef: schemas.LogEntry{},
			expectedTags: map[string]string{
				"TS":    "ts",
				"Stage": "stage",
				"Msg":   "msg",
				"Data":  "data,omitempty",
			},
		},
		{
			name:      "FillResponse",
			structRef: schemas.FillResponse{},
			expectedTags: map[string]string{
				"OK":         "ok",
				"UUID":       "uuid,omitempty",
				"StartedAt":  "startedAt",
				"FinishedAt": "finishedAt",
				"Reason":     "reason,omitempty",
				"Error":      "error,omitempty",
				"PageTitle":  "pageTitle,omitempty",
				"FinalURL":   "finalUrl,omitempty",
				"FillReport": "fillReport,omitempty",
				"PDFHref":    "pdfHref,omitempty",
				"InvoicePDF": "invoice_pdf_base64,omitempty",
				"PDFError":   "pdfError,omitempty",
				"Evidence":   "evidence_png_base64,omitempty",
				"Log":        "log",
				"Harvested":  "-",
			},
		},
	}

	for _, tc := range testCases {
		tt := tc
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			structType := reflect.TypeOf(tt.structRef)
			actualTags := make(map[string]string)

			for i := 0; i < structType.NumField(); i++ {
				field := structType.Field(i)
				if jsonTag := field.Tag.Get("json"); jsonTag != "" {
					actualTags[field.Name] = jsonTag
				}
			}

			assert.Equal(t, tt.expectedTags, actualTags, "JSON tags for struct %s do not match expectations", tt.name)
		})
	}
}
