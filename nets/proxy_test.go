package nets

import (
	"testing"

	"github.com/reusee/dscope"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/modes"
)

func TestGetProxyURL(t *testing.T) {
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Fork(
		func() ProxyAddr {
			return "socks://127.0.0.1:1080"
		},
	).Call(func(
		getURL GetProxyURL,
	) {
		u, err := getURL()
		if err != nil {
			t.Fatal(err)
		}
		if u.Scheme != "socks5" {
			t.Fatalf("got %v", u)
		}
	})
}

func TestDevelopmentModeHasNoProxy(t *testing.T) {
	t.Setenv("ALL_PROXY", "socks5://127.0.0.1:1080")
	dscope.New(
		modes.ForTest(t),
		new(Module),
		dscope.Provide(configs.NewLoader(nil, "")),
	).Call(func(
		addr ProxyAddr,
		getDialer GetProxyDialer,
	) {
		if addr != "" {
			t.Fatalf("got %q", addr)
		}
		if _, err := getDialer(); err != nil {
			t.Fatal(err)
		}
	})
}
