package router

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SnakeCase converts "blogPosts" and "blog-posts" to "blog_posts".
func SnakeCase(s string) string {
	var b strings.Builder
	var prev rune
	pendingSep := false
	for i, r := range s {
		switch {
		case unicode.IsUpper(r):
			if i > 0 && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
				pendingSep = true
			}
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
		default:
			pendingSep = true
		}
		prev = r
	}
	return b.String()
}

// ParentParam returns the default parameter of a parent resource segment:
// "posts" becomes "post_id".
func ParentParam(token string) string {
	return SnakeCase(inflection.Singular(token)) + "_id"
}

// MethodName maps a handler or action name to the exported Go method that
// serves it: "index" becomes "Index", "partial_update" becomes "PartialUpdate".
func MethodName(name string) string {
	title := cases.Title(language.Und, cases.NoLower)
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	for i, p := range parts {
		parts[i] = title.String(p)
	}
	return strings.Join(parts, "")
}
