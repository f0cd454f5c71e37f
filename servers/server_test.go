package servers

import (
	"bytes"
	"context"
	"io"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/generators"
	"github.com/reusee/infsite/logs"
	"github.com/reusee/infsite/modes"
	"github.com/reusee/infsite/storages"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

type echoGenerator struct{}

func (echoGenerator) Args() generators.GeneratorArgs {
	return generators.GeneratorArgs{}
}

func (echoGenerator) Stream(ctx context.Context, prompt string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield("<p>generated</p>", nil)
	}
}

func newTestScope(t *testing.T, logWriter io.Writer) dscope.Scope {
	store := storages.NewMemoryStore()
	return dscope.New(
		modes.ForTest(t),
		dscope.Provide(configs.NewLoader(nil, "")),
		new(Module),
	).Fork(
		func() logs.Writer {
			return logWriter
		},
		func() generators.GoogleAPIKey {
			return "test-key"
		},
		func() generators.GetDefaultGenerator {
			return func() (generators.Generator, error) {
				return echoGenerator{}, nil
			}
		},
		func() storages.GetStore {
			return func() (storages.Store, error) {
				return store, nil
			}
		},
	)
}

func TestServe(t *testing.T) {
	buf := new(lockedBuffer)
	newTestScope(t, buf).Call(func(
		serve Serve,
	) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		ctx, cancel := context.WithCancel(t.Context())
		done := make(chan error, 1)
		go func() {
			done <- serve(ctx, ln)
		}()
		base := "http://" + ln.Addr().String()

		get := func(path string) (*http.Response, string) {
			client := &http.Client{
				CheckRedirect: func(*http.Request, []*http.Request) error {
					return http.ErrUseLastResponse
				},
			}
			resp, err := client.Get(base + path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatal(err)
			}
			return resp, string(body)
		}

		resp, body := get("/robots.txt")
		if resp.StatusCode != http.StatusOK || body != "ok" {
			t.Fatalf("got %d %q", resp.StatusCode, body)
		}

		resp, body = get("/hello")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("got %d", resp.StatusCode)
		}
		if !strings.Contains(body, "<p>generated</p>") || !strings.HasSuffix(body, "</html>") {
			t.Fatalf("got %q", body)
		}
		if resp.Header.Get("X-Cache") != "MISS" {
			t.Fatal()
		}

		resp, _ = get("/hello")
		if resp.Header.Get("X-Cache") != "HIT" {
			t.Fatal()
		}

		resp, _ = get("/cat.jpg")
		if resp.StatusCode != http.StatusFound {
			t.Fatalf("got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Fatal(err)
			}
		case <-time.After(shutdownTimeout + time.Second):
			t.Fatal("not shut down")
		}

		if !strings.Contains(buf.String(), "path=/hello") {
			t.Fatalf("no request log: %s", buf.String())
		}
	})
}

func TestServeRejectsOtherMethods(t *testing.T) {
	newTestScope(t, io.Discard).Call(func(
		handler Handler,
	) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/page", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("got %d", rec.Code)
		}
	})
}

func TestRecovery(t *testing.T) {
	buf := new(lockedBuffer)
	newTestScope(t, buf).Call(func(
		recovery Recovery,
	) {
		handler := recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("got %d", rec.Code)
		}
		if !strings.Contains(buf.String(), "boom") {
			t.Fatalf("got %s", buf.String())
		}
	})
}

func TestLoggingKeepsFlusher(t *testing.T) {
	newTestScope(t, io.Discard).Call(func(
		logging Logging,
	) {
		var flushErr error
		var span logs.Span
		handler := logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			span = logs.SpanOf(r.Context())
			w.Write([]byte("x"))
			flushErr = http.NewResponseController(w).Flush()
		}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if flushErr != nil {
			t.Fatal(flushErr)
		}
		if !rec.Flushed {
			t.Fatal()
		}
		if span == "" {
			t.Fatal("no span")
		}
	})
}

func TestConfig(t *testing.T) {
	t.Setenv("PORT", "")
	dscope.New(
		modes.ForTest(t),
		dscope.Provide(configs.NewSourceLoader([]configs.Source{
			{Name: "test.cue", Content: []byte(`
listen_addr: "127.0.0.1:9000"
idle_timeout: "30s"
`)},
		}, "")),
		new(Module),
	).Call(func(
		addr ListenAddr,
		idle IdleTimeout,
	) {
		if addr != "127.0.0.1:9000" {
			t.Fatalf("got %s", addr)
		}
		if time.Duration(idle) != 30*time.Second {
			t.Fatalf("got %v", time.Duration(idle))
		}
	})
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	dscope.New(
		modes.ForTest(t),
		dscope.Provide(configs.NewLoader(nil, "")),
		new(Module),
	).Call(func(
		addr ListenAddr,
		idle IdleTimeout,
		server Server,
	) {
		if addr != ":8389" {
			t.Fatalf("got %s", addr)
		}
		if time.Duration(idle) != 5*time.Minute {
			t.Fatalf("got %v", time.Duration(idle))
		}
		if server.WriteTimeout != 0 {
			t.Fatal()
		}
		if server.ReadHeaderTimeout != 10*time.Second {
			t.Fatal()
		}
	})
}
