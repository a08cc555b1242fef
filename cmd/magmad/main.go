// Command magmad is the host adapter entrypoint: it parses the
// configuration table of §6, builds a routing.Router bound to the
// bootstrap node, performs the initial topology refresh, optionally
// starts the admin status server, and exposes a magmafs.Binding — the
// boundary at which the excluded kernel-facing FUSE adapter would
// attach (§1 Non-goals). Grounded on upspin.io/cmd/dfuse's main (flag
// parsing, mountpoint argument, fatal-on-init-error shape) and
// config/flags wiring.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"magma.io/admin"
	"magma.io/config"
	"magma.io/flags"
	"magma.io/log"
	"magma.io/magmafs"
	"magma.io/routing"
)

const (
	exitOK             = 0
	exitInitFailure    = 1
	exitMissingMountpt = 2
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Usage = usage
	rcFile := flag.String("config", "", "path to a YAML configuration file (optional)")
	adminAddr := flag.String("admin-addr", "", "address to serve the admin status page on (empty disables it)")
	flags.Parse(flags.Server...)

	cfg := config.Default()
	if *rcFile != "" {
		fileCfg, err := config.FromFile(*rcFile)
		if err != nil {
			log.Printf("magmad: loading config: %v", err)
			return exitInitFailure
		}
		cfg = fileCfg
	}
	applyFlagOverrides(&cfg)

	if cfg.Mountpoint == "" {
		log.Printf("magmad: no mountpoint configured")
		return exitMissingMountpt
	}

	mask, err := parseConfiguredDebugMask(cfg.DebugMask)
	if err != nil {
		log.Printf("magmad: %v", err)
		return exitInitFailure
	}
	if flags.DebugMask != 0 {
		mask = log.Channel(flags.DebugMask)
	}
	if cfg.DebugAll {
		mask = log.ChannelAll
	}
	log.SetDebugMask(mask)

	router := routing.New(nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := router.Refresh(ctx, cfg.BootstrapAddr()); err != nil {
		log.Printf("magmad: initial topology refresh against %s failed: %v", cfg.BootstrapAddr(), err)
		return exitInitFailure
	}
	log.Chan(log.ChannelClient, "magmad: joined ring via %s with %d participant(s)",
		cfg.BootstrapAddr(), router.Ring().Load().Participants())

	binding := magmafs.New(router)
	_ = binding // the excluded FUSE adapter attaches here (§1 Non-goals)

	if *adminAddr != "" {
		srv := admin.New(router, "magmad running")
		go func() {
			if err := http.ListenAndServe(*adminAddr, srv.Handler()); err != nil {
				log.Printf("magmad: admin server exited: %v", err)
			}
		}()
	}

	if cfg.Foreground {
		log.Printf("magmad: running in foreground, mounted at %s", cfg.Mountpoint)
		select {}
	}
	log.Printf("magmad: daemonizing is handled by the host process supervisor; running in foreground")
	select {}
}

func applyFlagOverrides(cfg *config.Config) {
	if flags.RemotePort != 0 {
		cfg.RemotePort = flags.RemotePort
	}
	if flags.RemoteHost != "" {
		cfg.RemoteHost = flags.RemoteHost
	}
	if flags.RemoteIP != "" {
		cfg.RemoteIP = flags.RemoteIP
	}
	if flags.Keyphrase != "" {
		cfg.Keyphrase = flags.Keyphrase
	}
	if flags.Mountpoint != "" {
		cfg.Mountpoint = flags.Mountpoint
	}
	if flags.DebugAll {
		cfg.DebugAll = true
	}
	if flags.SingleThreaded {
		cfg.SingleThreaded = true
	}
	if flags.Foreground {
		cfg.Foreground = true
	}
}

func parseConfiguredDebugMask(s string) (log.Channel, error) {
	if s == "" {
		return 0, nil
	}
	var mask log.Channel
	for _, name := range strings.Split(s, ",") {
		if name == "" {
			continue
		}
		switch name {
		case "ring":
			mask |= log.ChannelRing
		case "wire":
			mask |= log.ChannelWire
		case "routing":
			mask |= log.ChannelRouting
		case "client":
			mask |= log.ChannelClient
		case "admin":
			mask |= log.ChannelAdmin
		case "all":
			mask |= log.ChannelAll
		default:
			return 0, fmt.Errorf("magmad: unknown debug channel %q", name)
		}
	}
	return mask, nil
}
