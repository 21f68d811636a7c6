package schemas

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
)

// ModeAutoForm is the only plan mode the engine accepts.
const ModeAutoForm = "AUTO_FORM"

// Reason values reported in a FillResponse when OK is false.
const (
	ReasonCaptchaDetected = "captcha-detected"
	ReasonException       = "exception"
	ReasonBadPlan         = "bad-plan"
	ReasonBadPortal       = "bad-portal"
	ReasonServerError     = "server-error"
)

// -- Fill Plan --

// FillPlan is the caller's request: open PortalURL and fill it from Payload.
type FillPlan struct {
	Mode      string  `json:"mode"`
	PortalURL string  `json:"portal_url"`
	Payload   Payload `json:"payload"`
}

// LogicalField is one domain-level value to place on the page, such as
// rfc_receptor. It is immutable for the duration of a request.
type LogicalField struct {
	Name  string
	Value string
}

// Payload is the ordered set of logical fields. It decodes from a JSON object
// and keeps the key order of the input, since fields are filled in that order.
type Payload []LogicalField

// UnmarshalJSON accepts strings, numbers and booleans as field values and
// renders them as text. Numbers keep their literal form ("123.50" stays
// "123.50"). Nested objects and arrays are kept as their raw JSON text.
func (p *Payload) UnmarshalJSON(data []byte) error {
	iter := jsoniter.ParseBytes(jsoniter.ConfigCompatibleWithStandardLibrary, data)
	if iter.WhatIsNext() == jsoniter.NilValue {
		*p = nil
		return nil
	}
	if iter.WhatIsNext() != jsoniter.ObjectValue {
		return fmt.Errorf("payload must be a JSON object")
	}

	var fields Payload
	index := make(map[string]int)
	iter.ReadObjectCB(func(it *jsoniter.Iterator, key string) bool {
		value, err := readFieldValue(it)
		if err != nil {
			it.ReportError("payload", err.Error())
			return false
		}
		// A repeated key keeps its first position and takes the last value.
		if i, seen := index[key]; seen {
			fields[i].Value = value
			return true
		}
		index[key] = len(fields)
		fields = append(fields, LogicalField{Name: key, Value: value})
		return true
	})
	if iter.Error != nil && iter.Error != io.EOF {
		return fmt.Errorf("invalid payload: %w", iter.Error)
	}
	*p = fields
	return nil
}

func readFieldValue(it *jsoniter.Iterator) (string, error) {
	switch it.WhatIsNext() {
	case jsoniter.StringValue:
		return it.ReadString(), nil
	case jsoniter.NumberValue:
		return string(it.ReadNumber()), nil
	case jsoniter.BoolValue:
		return strconv.FormatBool(it.ReadBool()), nil
	case jsoniter.NilValue:
		it.ReadNil()
		return "", nil
	case jsoniter.ObjectValue, jsoniter.ArrayValue:
		return string(it.SkipAndReturnBytes()), nil
	default:
		return "", fmt.Errorf("unsupported value type")
	}
}

// MarshalJSON writes the payload back as an object in field order.
func (p Payload) MarshalJSON() ([]byte, error) {
	stream := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowStream(nil)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, f := range p {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(f.Name)
		stream.WriteString(f.Value)
	}
	stream.WriteObjectEnd()
	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

// -- Fill Response --

// FieldReport is the outcome for one logical field. OK means a value was
// entered into some candidate control.
type FieldReport struct {
	OK       bool     `json:"ok"`
	Value    string   `json:"value"`
	Synonyms []string `json:"syns"`
}

// LogEntry is one line of the per-request event log returned to the caller.
type LogEntry struct {
	TS    time.Time      `json:"ts"`
	Stage string         `json:"stage"`
	Msg   string         `json:"msg"`
	Data  map[string]any `json:"data,omitempty"`
}

// FillResponse is the structured outcome of one fill request.
type FillResponse struct {
	OK         bool                   `json:"ok"`
	UUID       string                 `json:"uuid,omitempty"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt"`
	Reason     string                 `json:"reason,omitempty"`
	Error      string                 `json:"error,omitempty"`
	PageTitle  string                 `json:"pageTitle,omitempty"`
	FinalURL   string                 `json:"finalUrl,omitempty"`
	FillReport map[string]FieldReport `json:"fillReport,omitempty"`
	PDFHref    *string                `json:"pdfHref,omitempty"`
	// InvoicePDF and Evidence are emitted base64 encoded.
	InvoicePDF []byte     `json:"invoice_pdf_base64,omitempty"`
	PDFError   string     `json:"pdfError,omitempty"`
	Evidence   []byte     `json:"evidence_png_base64,omitempty"`
	Log        []LogEntry `json:"log"`

	// Harvested is set once the harvest stage completed. The document fields
	// are then always present on the wire, as null when nothing was found.
	Harvested bool `json:"-"`
}

// MarshalJSON emits explicit nulls for the document fields after a harvest.
func (r FillResponse) MarshalJSON() ([]byte, error) {
	type alias FillResponse
	if r.Log == nil {
		r.Log = []LogEntry{}
	}
	if !r.Harvested {
		return json.Marshal(alias(r))
	}
	return json.Marshal(struct {
		alias
		PDFHref    *string `json:"pdfHref"`
		InvoicePDF []byte  `json:"invoice_pdf_base64"`
	}{alias(r), r.PDFHref, r.InvoicePDF})
}

// -- Artifacts --

// ArtifactKind distinguishes evidence screenshots from harvested documents.
type ArtifactKind string

const (
	ArtifactScreenshot ArtifactKind = "screenshot"
	ArtifactDocument   ArtifactKind = "document"
)

// Artifact is something captured from the page. Reference is the document URL
// when known; Error marks a partial harvest where the bytes were unavailable.
type Artifact struct {
	Kind      ArtifactKind
	Reference string
	Payload   []byte
	Error     string
}
