package middlewares

import (
	"fmt"
	"net/http"
	"path"
	"regexp"
	"strings"
)

// Policy decide qué rutas llevan respuesta firmada. Los prefijos se comparan
// contra el path limpio sin '/' inicial ("api/investments/INV1").
type Policy struct {
	// ProtectedPrefixes: rutas firmadas. Default: "api/".
	ProtectedPrefixes []string
	// ExcludedPrefixes ganan sobre los protegidos (endpoints del authorization server).
	ExcludedPrefixes []string
	// Patterns: regex adicionales sobre el mismo path normalizado.
	Patterns []*regexp.Regexp
	// Methods: si no está vacío, solo estos métodos se firman.
	Methods []string
}

// DefaultPolicy firma todo lo que cuelga de api/ salvo auth y discovery.
func DefaultPolicy() Policy {
	return Policy{
		ProtectedPrefixes: []string{"api/"},
		ExcludedPrefixes:  []string{"oauth2/", "api/auth/", ".well-known/"},
	}
}

// NewPolicy arma una Policy desde configuración. Listas vacías de prefijos
// usan los defaults.
func NewPolicy(protected, excluded, patterns, methods []string) (Policy, error) {
	p := DefaultPolicy()
	if len(protected) > 0 {
		p.ProtectedPrefixes = normalizePrefixes(protected)
	}
	if len(excluded) > 0 {
		p.ExcludedPrefixes = normalizePrefixes(excluded)
	}
	for _, expr := range patterns {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return Policy{}, fmt.Errorf("jws policy: invalid pattern %q: %w", expr, err)
		}
		p.Patterns = append(p.Patterns, re)
	}
	for _, m := range methods {
		if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
			p.Methods = append(p.Methods, m)
		}
	}
	return p, nil
}

func normalizePrefixes(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimLeft(strings.TrimSpace(s), "/")
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean("/" + p)
	// Clean quita la barra final; se conserva para que "api/" matchee "/api/"
	if strings.HasSuffix(p, "/") && clean != "/" {
		clean += "/"
	}
	return strings.TrimPrefix(clean, "/")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, strings.TrimLeft(p, "/")) {
			return true
		}
	}
	return false
}

// Matches reporta si method+path caen en el alcance de firma.
func (p Policy) Matches(method, requestPath string) bool {
	np := normalizePath(requestPath)
	if np == "" || hasAnyPrefix(np, p.ExcludedPrefixes) {
		return false
	}
	if len(p.Methods) > 0 && !containsFold(p.Methods, method) {
		return false
	}
	if hasAnyPrefix(np, p.ProtectedPrefixes) {
		return true
	}
	for _, re := range p.Patterns {
		if re.MatchString(np) {
			return true
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// MatchesRequest es Matches sobre un *http.Request.
func (p Policy) MatchesRequest(r *http.Request) bool {
	return p.Matches(r.Method, r.URL.Path)
}
