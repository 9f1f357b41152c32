package devserve

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
)

const indexWithScript = `<!DOCTYPE html>
<html>
<head>
<title>mic-check</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<!-- js/app.js is loaded below -->
<script src="js/vendor.js"></script>
<script type="module" src="js/app.js"></script>
</body>
</html>
`

// setupRoot writes files (slash-separated relative path → content) into a
// temp directory and returns it.
func setupRoot(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func newTestHandler(t *testing.T, root string, opts ...Option) *Handler {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock(1700000000))}, opts...)
	return New(Config{Root: root}, opts...)
}

func do(h http.Handler, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func assertNoCache(t *testing.T, resp *http.Response) {
	t.Helper()
	want := map[string]string{
		"Cache-Control": "no-store, no-cache, must-revalidate, max-age=0",
		"Pragma":        "no-cache",
		"Expires":       "0",
	}
	for k, v := range want {
		if got := resp.Header.Get(k); got != v {
			t.Errorf("%s: got %q, want %q", k, got, v)
		}
	}
}

func TestEntryPoint_Rewrite(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	h := newTestHandler(t, root)

	for _, target := range []string{"/", "/index.html", "/?reload=1"} {
		w := do(h, "GET", target)
		resp := w.Result()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", target, resp.StatusCode)
		}
		assertNoCache(t, resp)
		if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("%s: Content-Type %q", target, ct)
		}

		want := strings.Replace(indexWithScript,
			`<script type="module" src="js/app.js"></script>`,
			`<script type="module" src="js/app.js?v=1700000000"></script>`, 1)
		if diff := cmp.Diff(want, w.Body.String()); diff != "" {
			t.Errorf("%s: body mismatch (-want +got):\n%s", target, diff)
		}
		if cl := resp.Header.Get("Content-Length"); cl != strconv.Itoa(len(want)) {
			t.Errorf("%s: Content-Length %s, want %d", target, cl, len(want))
		}
	}
}

func TestEntryPoint_StaleTokenReplaced(t *testing.T) {
	root := setupRoot(t, map[string]string{
		"index.html": `<script type="module" src="js/app.js?v=1699999999"></script>`,
	})
	h := newTestHandler(t, root)

	w := do(h, "GET", "/")
	want := `<script type="module" src="js/app.js?v=1700000000"></script>`
	if got := w.Body.String(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestEntryPoint_NoScriptTagUnchanged(t *testing.T) {
	doc := "<html><body><script src=\"js/app.js\"></script>\r\n<p>é</p></body></html>"
	root := setupRoot(t, map[string]string{"index.html": doc})

	for _, mode := range []string{RewritePattern, RewriteToken} {
		h := New(Config{Root: root, RewriteMode: mode}, WithClock(fixedClock(1700000000)))
		w := do(h, "GET", "/")
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status %d", mode, w.Code)
		}
		if w.Body.String() != doc {
			t.Errorf("%s: body changed:\n%s", mode, w.Body.String())
		}
	}
}

func TestEntryPoint_TokenAdvancesWithClock(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	now := int64(1700000000)
	h := New(Config{Root: root}, WithClock(func() time.Time { return time.Unix(now, 0) }))

	re := regexp.MustCompile(`src="js/app\.js\?v=(\d+)"`)
	var prev int64
	for i := 0; i < 3; i++ {
		m := re.FindStringSubmatch(do(h, "GET", "/").Body.String())
		if m == nil {
			t.Fatalf("request %d: token not found", i)
		}
		tok, _ := strconv.ParseInt(m[1], 10, 64)
		if tok != now {
			t.Errorf("request %d: token %d, want %d", i, tok, now)
		}
		if i > 0 && tok <= prev {
			t.Errorf("request %d: token %d did not advance past %d", i, tok, prev)
		}
		prev = tok
		now += 2
	}
}

func TestEntryPoint_ReadFreshEachRequest(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": "<p>v1</p>"})
	h := newTestHandler(t, root)

	if got := do(h, "GET", "/").Body.String(); got != "<p>v1</p>" {
		t.Fatalf("first: %q", got)
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<p>v2</p>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := do(h, "GET", "/").Body.String(); got != "<p>v2</p>" {
		t.Fatalf("second: %q", got)
	}
}

func TestEntryPoint_Missing(t *testing.T) {
	root := setupRoot(t, map[string]string{"other.html": "<p>other</p>"})
	staticHit := false
	h := newTestHandler(t, root, WithStatic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staticHit = true
	})))

	for _, target := range []string{"/", "/index.html"} {
		resp := do(h, "GET", target).Result()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("%s: status %d, want 404", target, resp.StatusCode)
		}
		assertNoCache(t, resp)
	}
	if staticHit {
		t.Fatal("missing entry point must not fall through to static serving")
	}
}

func TestEntryPoint_InvalidUTF8(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": "<p>\xff\xfe</p>"})
	h := newTestHandler(t, root)

	w := do(h, "GET", "/")
	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	assertNoCache(t, resp)
	if !strings.Contains(w.Body.String(), "not valid UTF-8") {
		t.Errorf("body should describe the failure, got %q", w.Body.String())
	}
}

func TestEntryPoint_ReadFailure(t *testing.T) {
	// A directory where the file should be fails the read without being
	// "not found".
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "index.html"), 0o755); err != nil {
		t.Fatal(err)
	}
	h := newTestHandler(t, root)

	w := do(h, "GET", "/")
	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	assertNoCache(t, resp)
	if w.Body.Len() == 0 {
		t.Error("expected a failure description in the body")
	}

	// The handler keeps serving.
	if err := os.Remove(filepath.Join(root, "index.html")); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("ok"), 0o644); err != nil {
		t.Fatal(err)
	}
	if w := do(h, "GET", "/"); w.Code != http.StatusOK {
		t.Fatalf("after recovery: status %d", w.Code)
	}
}

func TestEntryPoint_Head(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	h := newTestHandler(t, root)

	resp := do(h, "HEAD", "/").Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	assertNoCache(t, resp)
}

func TestEntryPoint_PostNotAllowed(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	h := newTestHandler(t, root)

	resp := do(h, "POST", "/").Result()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status %d, want 405", resp.StatusCode)
	}
	assertNoCache(t, resp)
}

func TestStatic_ServedVerbatim(t *testing.T) {
	css := "body { background: url(js/app.js); }\n"
	root := setupRoot(t, map[string]string{
		"index.html": indexWithScript,
		"style.css":  css,
		"js/app.js":  "import './mod.js';\n",
	})
	h := newTestHandler(t, root)

	w := do(h, "GET", "/style.css")
	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	assertNoCache(t, resp)
	if w.Body.String() != css {
		t.Errorf("body: %q", w.Body.String())
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type: %q", ct)
	}

	w = do(h, "GET", "/js/app.js")
	if w.Code != http.StatusOK || w.Body.String() != "import './mod.js';\n" {
		t.Errorf("js/app.js: status %d body %q", w.Code, w.Body.String())
	}
}

func TestStatic_NotFound(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	h := newTestHandler(t, root)

	resp := do(h, "GET", "/missing.png").Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	assertNoCache(t, resp)
}

func TestStatic_PanicRecovered(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	h := newTestHandler(t, root, WithStatic(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("static strategy exploded")
	})))

	resp := do(h, "GET", "/anything").Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status %d, want 500", resp.StatusCode)
	}
	assertNoCache(t, resp)
}

func TestStatic_InjectedStrategy(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	var seen []string
	h := newTestHandler(t, root, WithStatic(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.URL.Path)
		w.Write([]byte("static"))
	})))

	do(h, "GET", "/")
	do(h, "GET", "/a/b.js")
	do(h, "GET", "/index.htm")

	if diff := cmp.Diff([]string{"/a/b.js", "/index.htm"}, seen); diff != "" {
		t.Errorf("static paths (-want +got):\n%s", diff)
	}
}

func TestEntryPoint_CustomNames(t *testing.T) {
	root := setupRoot(t, map[string]string{
		"main.html": `<script type="module" src="dist/bundle.mjs?v=1"></script>`,
	})
	h := New(Config{Root: root, EntryPoint: "main.html", Script: "dist/bundle.mjs"},
		WithClock(fixedClock(42)))

	for _, target := range []string{"/", "/main.html"} {
		w := do(h, "GET", target)
		want := `<script type="module" src="dist/bundle.mjs?v=42"></script>`
		if w.Body.String() != want {
			t.Errorf("%s: got %q", target, w.Body.String())
		}
	}
}

// recordingRewriter stands in for the configured rewriter.
type recordingRewriter struct {
	tokens []int64
}

func (r *recordingRewriter) Rewrite(doc []byte, token int64) []byte {
	r.tokens = append(r.tokens, token)
	return []byte("rewritten:" + strconv.FormatInt(token, 10))
}

func TestEntryPoint_InjectedRewriter(t *testing.T) {
	root := setupRoot(t, map[string]string{"index.html": indexWithScript})
	rw := &recordingRewriter{}
	h := newTestHandler(t, root, WithRewriter(rw))

	w := do(h, "GET", "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if got := w.Body.String(); got != "rewritten:1700000000" {
		t.Errorf("body: got %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != strconv.Itoa(len("rewritten:1700000000")) {
		t.Errorf("Content-Length: got %q", got)
	}
	if diff := cmp.Diff([]int64{1700000000}, rw.tokens); diff != "" {
		t.Errorf("tokens (-want +got):\n%s", diff)
	}
}

func TestRoutes_MountedUnderPrefix(t *testing.T) {
	root := setupRoot(t, map[string]string{
		"index.html": indexWithScript,
		"style.css":  "body{}",
	})
	h := newTestHandler(t, root,
		WithStatic(http.StripPrefix("/app", http.FileServer(http.Dir(root)))))

	parent := chi.NewRouter()
	parent.Mount("/app", h.Routes())

	for _, target := range []string{"/app/", "/app/index.html"} {
		resp := do(parent, "GET", target).Result()
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: status %d", target, resp.StatusCode)
		}
		if !strings.Contains(string(body), `<script type="module" src="js/app.js?v=1700000000"></script>`) {
			t.Errorf("%s: entry point not rewritten:\n%s", target, body)
		}
		assertNoCache(t, resp)
	}

	resp := do(parent, "GET", "/app/style.css").Result()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "body{}" {
		t.Errorf("static: status %d body %q", resp.StatusCode, body)
	}
	assertNoCache(t, resp)

	if w := do(parent, "GET", "/index.html"); w.Code != http.StatusNotFound {
		t.Errorf("outside mount: status %d, want 404", w.Code)
	}
}
