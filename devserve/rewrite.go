// CLAUDE:SUMMARY Entry-point rewriters: append a ?v=<unix seconds> freshness token to the module script src.
package devserve

import (
	"regexp"
	"strconv"
)

// Rewriter cache-busts the module script reference of an entry-point
// document. Implementations return doc unchanged when no reference matches.
type Rewriter interface {
	Rewrite(doc []byte, token int64) []byte
}

// PatternRewriter matches the tag in its authored form:
//
//	<script type="module" src="js/app.js">
//	<script type="module" src="js/app.js?v=1699999999">
//
// type="module" must come first, immediately followed by src. Any existing
// query string on src is replaced, not appended to.
type PatternRewriter struct {
	script string
	re     *regexp.Regexp
}

// NewPatternRewriter builds a PatternRewriter for the given script path,
// e.g. "js/app.js".
func NewPatternRewriter(script string) *PatternRewriter {
	return &PatternRewriter{
		script: script,
		re:     regexp.MustCompile(`<script type="module" src="` + regexp.QuoteMeta(script) + `(?:\?[^"]*)?"`),
	}
}

func (p *PatternRewriter) Rewrite(doc []byte, token int64) []byte {
	repl := []byte(`<script type="module" src="` + bustedSrc(p.script, token) + `"`)
	return p.re.ReplaceAllLiteral(doc, repl)
}

func bustedSrc(script string, token int64) string {
	return script + "?v=" + strconv.FormatInt(token, 10)
}
