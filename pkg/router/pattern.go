package router

import "strings"

// NormalizePattern gives a pattern exactly one leading slash, no empty
// segments and no trailing slash except for the root.
func NormalizePattern(p string) string {
	segs := strings.Split(p, "/")
	out := segs[:0]
	for _, s := range segs {
		if s != "" {
			out = append(out, s)
		}
	}
	return "/" + strings.Join(out, "/")
}

// Param returns the parameter name of a ":name" segment.
func Param(segment string) (string, bool) {
	if len(segment) < 2 || segment[0] != ':' {
		return "", false
	}
	return segment[1:], true
}

// Params lists the parameter names of a pattern in order.
func Params(pattern string) []string {
	var out []string
	for _, s := range strings.Split(pattern, "/") {
		if p, ok := Param(s); ok {
			out = append(out, p)
		}
	}
	return out
}

// BracePattern rewrites ":id" segments as "{id}", or "{id:re}" when the route
// constrains id, and a "*" segment as wildcard. Used by routers that spell
// parameters with braces.
func BracePattern(r *Route, wildcard string) string {
	segs := strings.Split(NormalizePattern(r.Pattern), "/")
	for i, s := range segs {
		if s == "*" {
			segs[i] = wildcard
			continue
		}
		name, ok := Param(s)
		if !ok {
			continue
		}
		if m, ok := r.Matcher(name); ok {
			segs[i] = "{" + name + ":" + StripAnchors(m) + "}"
		} else {
			segs[i] = "{" + name + "}"
		}
	}
	return strings.Join(segs, "/")
}

// BraceHost rewrites ":tenant" host labels as "{tenant}".
func BraceHost(domain string) string {
	labels := strings.Split(domain, ".")
	for i, l := range labels {
		if name, ok := Param(l); ok {
			labels[i] = "{" + name + "}"
		}
	}
	return strings.Join(labels, ".")
}

// StripAnchors removes a leading ^ and an unescaped trailing $; routers anchor
// parameter expressions themselves.
func StripAnchors(re string) string {
	re = strings.TrimPrefix(re, "^")
	if strings.HasSuffix(re, "$") && !strings.HasSuffix(re, `\$`) {
		re = strings.TrimSuffix(re, "$")
	}
	return re
}
