package servers

import (
	"fmt"
	"os"
	"time"

	"github.com/reusee/infsite/cmds"
	"github.com/reusee/infsite/configs"
	"github.com/reusee/infsite/vars"
)

var (
	listenFlag      = cmds.Var[string]("-listen")
	idleTimeoutFlag = cmds.Var[time.Duration]("-idle-timeout")
)

type ListenAddr string

func (Module) ListenAddr(
	loader configs.Loader,
) ListenAddr {
	var fromEnv ListenAddr
	if port := os.Getenv("PORT"); port != "" {
		fromEnv = ListenAddr(":" + port)
	}
	return vars.FirstNonZero(
		ListenAddr(*listenFlag),
		configs.First[ListenAddr](loader, "listen_addr"),
		fromEnv,
		":8389",
	)
}

type IdleTimeout time.Duration

func (Module) IdleTimeout(
	loader configs.Loader,
) IdleTimeout {
	var fromConfig time.Duration
	if s := configs.First[string](loader, "idle_timeout"); s != "" {
		d, err := time.ParseDuration(s)
		if err != nil {
			panic(fmt.Errorf("idle_timeout: %w", err))
		}
		fromConfig = d
	}
	return IdleTimeout(vars.FirstNonZero(
		*idleTimeoutFlag,
		fromConfig,
		5*time.Minute,
	))
}
