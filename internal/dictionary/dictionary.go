// Package dictionary maps logical field names to the phrases portals use to
// label them. A Dictionary is immutable once built and safe to share.
package dictionary

import (
	"sort"
	"strings"
)

// SynonymSet is an ordered list of lowercase phrases for one logical field.
type SynonymSet []string

// Dictionary is a read-only lookup from logical field name to SynonymSet.
type Dictionary struct {
	entries map[string]SynonymSet
}

// builtin is the portal vocabulary for Mexican invoice (CFDI) request forms.
var builtin = map[string][]string{
	"rfc_receptor":          {"rfc receptor", "rfc del receptor", "rfc cliente", "rfc"},
	"razon_social_receptor": {"razon social", "razón social", "nombre fiscal", "rs"},
	"correo_receptor":       {"correo", "email", "e-mail", "mail", "correo electronico"},
	"rfc_emisor":            {"rfc emisor", "rfc del emisor", "rfc tienda", "rfc proveedor"},
	"ticket_numero":         {"ticket", "folio", "no. ticket", "numero de ticket", "número de ticket", "id ticket", "id compra"},
	"sucursal":              {"sucursal", "tienda", "ubicacion", "ubicación", "no. sucursal", "num sucursal"},
	"total":                 {"total", "importe", "monto", "total a pagar", "total compra"},
	"fecha":                 {"fecha", "fecha de compra", "fecha ticket"},
	"hora":                  {"hora", "hora de compra", "hora ticket"},
	"receptor_cp":           {"cp", "c.p.", "codigo postal", "código postal", "postal"},
	"receptor_calle":        {"calle", "domicilio", "direccion", "dirección"},
	"receptor_numext":       {"num ext", "num. exterior", "numero exterior", "número exterior"},
	"receptor_colonia":      {"colonia", "fracc", "fraccionamiento"},
	"receptor_municipio":    {"municipio", "delegacion", "delegación"},
	"receptor_estado":       {"estado", "entidad"},
}

// Default returns the built-in dictionary.
func Default() *Dictionary {
	return New(builtin)
}

// New builds a dictionary from entries. Keys and phrases are lowercased and
// trimmed, empty phrases dropped and the input is copied.
func New(entries map[string][]string) *Dictionary {
	d := &Dictionary{entries: make(map[string]SynonymSet, len(entries))}
	for name, phrases := range entries {
		d.put(name, phrases)
	}
	return d
}

// WithOverrides returns a new dictionary where each override replaces the
// synonym set of its field, or adds the field when unknown. The receiver is
// left untouched.
func (d *Dictionary) WithOverrides(overrides map[string][]string) *Dictionary {
	merged := &Dictionary{entries: make(map[string]SynonymSet, len(d.entries)+len(overrides))}
	for name, set := range d.entries {
		merged.entries[name] = set
	}
	for name, phrases := range overrides {
		merged.put(name, phrases)
	}
	return merged
}

func (d *Dictionary) put(name string, phrases []string) {
	key := normalize(name)
	if key == "" {
		return
	}
	set := make(SynonymSet, 0, len(phrases))
	for _, p := range phrases {
		if p = normalize(p); p != "" {
			set = append(set, p)
		}
	}
	if len(set) == 0 {
		return
	}
	d.entries[key] = set
}

// Lookup returns the synonyms for a logical field. An unknown name degrades to
// itself as its only synonym. The returned slice is a copy.
func (d *Dictionary) Lookup(name string) SynonymSet {
	if set, ok := d.entries[normalize(name)]; ok {
		return append(SynonymSet(nil), set...)
	}
	if raw := normalize(name); raw != "" {
		return SynonymSet{raw}
	}
	return nil
}

// Known reports whether name has a dictionary entry.
func (d *Dictionary) Known(name string) bool {
	_, ok := d.entries[normalize(name)]
	return ok
}

// Names returns the known field names in sorted order.
func (d *Dictionary) Names() []string {
	names := make([]string, 0, len(d.entries))
	for name := range d.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
