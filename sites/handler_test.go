package sites

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/modes"
	"github.com/reusee/infsite/siteconfigs"
	"github.com/reusee/infsite/storages"
)

type fakeItem struct {
	text string
	err  error
}

type fakeGenerator struct {
	items    []fakeItem
	calls    atomic.Int32
	prompts  []string
	onStream func()
}

var _ generators.Generator = new(fakeGenerator)

func (f *fakeGenerator) Args() generators.GeneratorArgs {
	return generators.GeneratorArgs{
		Model: "fake",
	}
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		f.calls.Add(1)
		f.prompts = append(f.prompts, prompt)
		if f.onStream != nil {
			f.onStream()
		}
		for _, item := range f.items {
			if !yield(item.text, item.err) {
				return
			}
		}
	}
}

func chunks(texts ...string) []fakeItem {
	var ret []fakeItem
	for _, text := range texts {
		ret = append(ret, fakeItem{text: text})
	}
	return ret
}

type failingStore struct {
	getErr error
	putErr error
	puts   int
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, f.getErr
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte) error {
	f.puts++
	return f.putErr
}

func newTestScope(t *testing.T, config string, gen generators.Generator, store storages.Store) dscope.Scope {
	return dscope.New(
		modes.ForTest(t),
		dscope.Provide(configs.NewSourceLoader([]configs.Source{
			{Name: "test.cue", Content: []byte(config)},
		}, siteconfigs.Schema)),
		new(Module),
	).Fork(
		func() generators.GetDefaultGenerator {
			return func() (generators.Generator, error) {
				return gen, nil
			}
		},
		func() storages.GetStore {
			return func() (storages.Store, error) {
				return store, nil
			}
		},
	)
}

func serve(handler http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGenerateAndCache(t *testing.T) {
	gen := &fakeGenerator{
		items: chunks("<h1>", "About", "</h1>"),
	}
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		rec := serve(handler, "/about")
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
		want := documentHead("/tailwind.js") + "<h1>About</h1>" + closingSequence
		if rec.Body.String() != want {
			t.Fatalf("got %q", rec.Body.String())
		}
		if rec.Header().Get("X-Cache") != "MISS" {
			t.Fatalf("got %q", rec.Header().Get("X-Cache"))
		}
		if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
			t.Fatal()
		}
		if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
			t.Fatalf("got %q", rec.Header().Get("Content-Type"))
		}
		if !strings.HasSuffix(gen.prompts[0], "/about") {
			t.Fatalf("got %q", gen.prompts[0])
		}

		stored, ok, err := store.Get(t.Context(), string(EncodeCacheKey("/about")))
		if err != nil {
			t.Fatal(err)
		}
		if !ok || string(stored) != want {
			t.Fatalf("got %v %q", ok, stored)
		}
		if slot.InUse() != 0 {
			t.Fatal("slot not released")
		}

		// second request is a hit, and trailing slashes share the entry
		rec = serve(handler, "/about/")
		if rec.Body.String() != want {
			t.Fatalf("got %q", rec.Body.String())
		}
		if rec.Header().Get("X-Cache") != "HIT" {
			t.Fatalf("got %q", rec.Header().Get("X-Cache"))
		}
		if n := gen.calls.Load(); n != 1 {
			t.Fatalf("got %d calls", n)
		}
	})
}

func TestCacheHitSkipsSlot(t *testing.T) {
	gen := new(fakeGenerator)
	store := storages.NewMemoryStore()
	if err := store.Put(t.Context(), string(EncodeCacheKey("/x?y=1")), []byte("cached")); err != nil {
		t.Fatal(err)
	}
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		// a hit is served even while another generation holds the slot
		slot.Acquire()
		defer slot.Release()
		rec := serve(handler, "/x?y=1")
		if rec.Code != http.StatusOK || rec.Body.String() != "cached" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
		if rec.Header().Get("Content-Length") != "6" {
			t.Fatal()
		}
		if gen.calls.Load() != 0 {
			t.Fatal()
		}
	})
}

func TestHeadFlushedBeforeUpstream(t *testing.T) {
	rec := httptest.NewRecorder()
	gen := &fakeGenerator{
		items: chunks("body"),
	}
	gen.onStream = func() {
		if !rec.Flushed {
			t.Error("not flushed")
		}
		if rec.Body.String() != documentHead("/tailwind.js") {
			t.Errorf("got %q", rec.Body.String())
		}
	}
	newTestScope(t, "", gen, storages.NewMemoryStore()).Call(func(
		handler *Handler,
	) {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if gen.calls.Load() != 1 {
			t.Fatal()
		}
	})
}

func TestBusy(t *testing.T) {
	gen := new(fakeGenerator)
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		if !slot.TryAcquire() {
			t.Fatal()
		}
		rec := serve(handler, "/busy")
		slot.Release()
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), busyMessage) {
			t.Fatalf("got %q", rec.Body.String())
		}
		if gen.calls.Load() != 0 {
			t.Fatal()
		}
		if store.Len() != 0 {
			t.Fatal()
		}
	})
}

func TestUpstreamError(t *testing.T) {
	gen := &fakeGenerator{
		items: []fakeItem{
			{text: "<p>partial"},
			{err: &generators.UpstreamError{StatusCode: 500, Body: "boom"}},
			{text: "never"},
		},
	}
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		rec := serve(handler, "/broken")
		want := documentHead("/tailwind.js") + "<p>partial" + errorFragment + closingSequence
		if rec.Body.String() != want {
			t.Fatalf("got %q", rec.Body.String())
		}
		if store.Len() != 0 {
			t.Fatal("failed generation cached")
		}
		if slot.InUse() != 0 {
			t.Fatal("slot not released")
		}

		// nothing was cached, so the next request generates again
		serve(handler, "/broken")
		if gen.calls.Load() != 2 {
			t.Fatal()
		}
	})
}

func TestGeneratorUnavailable(t *testing.T) {
	store := storages.NewMemoryStore()
	newTestScope(t, "", nil, store).Fork(
		func() generators.GetDefaultGenerator {
			return func() (generators.Generator, error) {
				return nil, errors.New("no model")
			}
		},
	).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		rec := serve(handler, "/x")
		if !strings.Contains(rec.Body.String(), errorFragment) {
			t.Fatalf("got %q", rec.Body.String())
		}
		if !strings.HasSuffix(rec.Body.String(), closingSequence) {
			t.Fatal()
		}
		if store.Len() != 0 || slot.InUse() != 0 {
			t.Fatal()
		}
	})
}

func TestMalformedChunkSkipped(t *testing.T) {
	gen := &fakeGenerator{
		items: []fakeItem{
			{text: "a"},
			{err: &generators.MalformedChunkError{Data: "{", Err: errors.New("bad")}},
			{text: "b"},
		},
	}
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/m")
		want := documentHead("/tailwind.js") + "ab" + closingSequence
		if rec.Body.String() != want {
			t.Fatalf("got %q", rec.Body.String())
		}
		if store.Len() != 1 {
			t.Fatal()
		}
	})
}

func TestMarkerBodyPolicy(t *testing.T) {
	gen := &fakeGenerator{
		items: chunks("<!-- plan --><ma", "in>x</ma", "in>junk", "more junk"),
	}
	store := storages.NewMemoryStore()
	newTestScope(t, `body_policy: "marker"`, gen, store).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/p")
		want := documentHead("/tailwind.js") + "<main>x</main>" + closingSequence
		if rec.Body.String() != want {
			t.Fatalf("got %q", rec.Body.String())
		}
		stored, _, _ := store.Get(t.Context(), string(EncodeCacheKey("/p")))
		if string(stored) != want {
			t.Fatalf("got %q", stored)
		}
	})
}

func TestStoreFailures(t *testing.T) {
	gen := &fakeGenerator{
		items: chunks("x"),
	}
	store := &failingStore{
		getErr: errors.New("read"),
		putErr: errors.New("write"),
	}
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/f")
		want := documentHead("/tailwind.js") + "x" + closingSequence
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
		if store.puts != 1 {
			t.Fatal()
		}
	})
}

func TestImageRedirect(t *testing.T) {
	gen := new(fakeGenerator)
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/images/cat.jpg?w=300&h=200")
		if rec.Code != http.StatusFound {
			t.Fatalf("got %d", rec.Code)
		}
		key := EncodeCacheKey("/images/cat.jpg?w=300&h=200")
		if got := rec.Header().Get("Location"); got != "https://picsum.photos/seed/"+string(key)+"/300/200" {
			t.Fatalf("got %s", got)
		}

		rec = serve(handler, "/a.png?w=abc&h=-1")
		key = EncodeCacheKey("/a.png?w=abc&h=-1")
		if got := rec.Header().Get("Location"); got != "https://picsum.photos/seed/"+string(key)+"/1000/600" {
			t.Fatalf("got %s", got)
		}

		if gen.calls.Load() != 0 || store.Len() != 0 {
			t.Fatal()
		}
	})
}

func TestImageRedirectConfigured(t *testing.T) {
	newTestScope(t, `
image_base_url: "https://img.example"
image_width: 64
image_height: 32
`, new(fakeGenerator), storages.NewMemoryStore()).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/p.png")
		want := "https://img.example/seed/" + string(EncodeCacheKey("/p.png")) + "/64/32"
		if got := rec.Header().Get("Location"); got != want {
			t.Fatalf("got %s", got)
		}
	})
}

func TestInertFile(t *testing.T) {
	gen := new(fakeGenerator)
	store := storages.NewMemoryStore()
	newTestScope(t, "", gen, store).Call(func(
		handler *Handler,
		slot generators.GenerationSlot,
	) {
		slot.Acquire()
		defer slot.Release()
		rec := serve(handler, "/favicon.ico")
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Fatalf("got %d %q", rec.Code, rec.Body.String())
		}
		if gen.calls.Load() != 0 || store.Len() != 0 {
			t.Fatal()
		}
	})
}

func TestPageExtensionGenerates(t *testing.T) {
	gen := &fakeGenerator{
		items: chunks("php"),
	}
	newTestScope(t, "", gen, storages.NewMemoryStore()).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/index.php")
		if !strings.Contains(rec.Body.String(), "php") {
			t.Fatalf("got %q", rec.Body.String())
		}
		if gen.calls.Load() != 1 {
			t.Fatal()
		}
	})
}

func TestStylesheet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tailwind.js")
	if err := os.WriteFile(path, []byte("console.log(1)"), 0644); err != nil {
		t.Fatal(err)
	}
	gen := new(fakeGenerator)
	newTestScope(t, `stylesheet_file: "`+path+`"`, gen, storages.NewMemoryStore()).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/tailwind.js")
		if rec.Code != http.StatusOK {
			t.Fatalf("got %d", rec.Code)
		}
		if rec.Body.String() != "console.log(1)" {
			t.Fatalf("got %q", rec.Body.String())
		}
		if !strings.Contains(rec.Header().Get("Content-Type"), "javascript") {
			t.Fatalf("got %q", rec.Header().Get("Content-Type"))
		}
		if gen.calls.Load() != 0 {
			t.Fatal()
		}
	})
}

func TestStylesheetMissing(t *testing.T) {
	newTestScope(t, `stylesheet_file: "/nonexistent/tailwind.js"`, new(fakeGenerator), storages.NewMemoryStore()).Call(func(
		handler *Handler,
	) {
		rec := serve(handler, "/tailwind.js")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	newTestScope(t, "", nil, nil).Call(func(
		config Config,
	) {
		if err := config.Validate(); err != nil {
			t.Fatal(err)
		}
		if config.BodyPolicy != BodyPolicyPassthrough {
			t.Fatalf("got %s", config.BodyPolicy)
		}
		config.BodyPolicy = "foo"
		if err := config.Validate(); err == nil {
			t.Fatal()
		}
	})
}

func TestPageExtensionsConfigured(t *testing.T) {
	newTestScope(t, `page_extensions: [".html", ".htm"]`, nil, nil).Call(func(
		config Config,
	) {
		if got := config.classify("/a.html"); got != routePage {
			t.Fatalf("got %s", got)
		}
		if got := config.classify("/a.php"); got != routeInert {
			t.Fatalf("got %s", got)
		}
	})
}
