// Package resolver maps raw geographic names from the extracts to the
// target store's surrogate identifiers. Resolution is fail-open: an
// unmatched or unreadable value resolves to nil and the record
// proceeds without it.
package resolver

import (
	"context"
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LocationStore is the read-only lookup capability the resolver needs
// from the target store.
type LocationStore interface {
	FindProvinceID(ctx context.Context, name string) (*string, error)
	FindCityID(ctx context.Context, name, provinceID string) (*string, error)
}

// provinceAliases maps accent-stripped, lowered extract spellings to
// the canonical province names persisted in loc_estado.
var provinceAliases = map[string]string{
	"cordoba":    "Córdoba",
	"caba":       "Ciudad Autónoma de Buenos Aires",
	"entre rios": "Entre Ríos",
	"santa fe":   "Santa Fe",
}

// cityReplacements rewrites known misspellings and abbreviations in
// extract city names before the store lookup. Applied in order as
// substring substitutions; later rules can rewrite the output of
// earlier ones, which is why the order is fixed.
var cityReplacements = []struct{ from, to string }{
	{"CAP.", "CAPITAN "},
	{"SJ.", "SAN JOSE "},
	{"GOB.", "GOBERNADOR "},
	{"GRAL.", "GENERAL"},
	{"San Jose de la Esquina", "SAN JOSE DE LA ESQUINA"},
	{"CORONEL DOMINGUEZ", "CORONEL RODOLFO S. DOMINGUEZ"},
	{"PUERTO SAN MARTIN", "PUERTO GENERAL SAN MARTIN"},
	{"NUEVA CORDOBA", "CORDOBA"},
	{"CNEL OLMEDO", "CORDOBA"},
	{"Cordoba", "CORDOBA"},
	{"CÓRDOBA", "CORDOBA"},
	{"CABA", "CIUDAD DE BUENOS AIRES"},
}

type cityKey struct {
	city     string
	province string
}

// Resolver resolves raw province and city names with per-run
// memoization: one store lookup per distinct province name and per
// distinct (city, province) pair. The caches live for one run and are
// never shared across runs or feeds.
type Resolver struct {
	store  LocationStore
	logger *zap.Logger

	provinces map[string]*string
	cities    map[cityKey]*string
}

// New creates a resolver with empty caches.
func New(store LocationStore, logger *zap.Logger) *Resolver {
	return &Resolver{
		store:     store,
		logger:    logger,
		provinces: make(map[string]*string),
		cities:    make(map[cityKey]*string),
	}
}

// Province resolves a raw province name to its loc_estado id, nil when
// unresolved.
func (r *Resolver) Province(ctx context.Context, raw string) *string {
	name := strings.TrimSpace(raw)
	if name == "" {
		return nil
	}

	key := stripAccents(strings.ToLower(name))
	if id, ok := r.provinces[key]; ok {
		return id
	}

	canonical := key
	if alias, ok := provinceAliases[key]; ok {
		canonical = alias
	}

	id, err := r.store.FindProvinceID(ctx, strings.ToLower(canonical))
	if err != nil {
		r.logger.Warn("Province lookup failed", zap.String("province", raw), zap.Error(err))
		id = nil
	}
	if id == nil {
		r.logger.Warn("Unresolved province", zap.String("province", raw))
	}

	r.provinces[key] = id
	return id
}

// City resolves a raw city name scoped to an already-resolved province,
// nil when either side is unresolved.
func (r *Resolver) City(ctx context.Context, raw string, provinceID *string) *string {
	name := strings.TrimSpace(raw)
	if name == "" || provinceID == nil {
		return nil
	}

	for _, rule := range cityReplacements {
		name = strings.ReplaceAll(name, rule.from, rule.to)
	}

	key := cityKey{city: name, province: *provinceID}
	if id, ok := r.cities[key]; ok {
		return id
	}

	id, err := r.store.FindCityID(ctx, strings.ToLower(name), *provinceID)
	if err != nil {
		r.logger.Warn("City lookup failed", zap.String("city", raw), zap.Error(err))
		id = nil
	}
	if id == nil {
		r.logger.Warn("Unresolved city", zap.String("city", raw), zap.String("province_id", *provinceID))
	}

	r.cities[key] = id
	return id
}

// stripAccents removes combining marks, e.g. "Córdoba" -> "Cordoba".
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}
