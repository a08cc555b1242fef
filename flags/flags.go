// Package flags defines the command-line configuration options in the
// table of §6 of the spec, kept consistent across the magmad daemon and
// any other binary that links this module.
package flags

import (
	"flag"
	"fmt"
	"reflect"

	"magma.io/log"
)

// We define the flags in two steps so clients don't have to write *flags.Flag.
// It also makes the documentation easier to read.

var (
	// RemotePort is the bootstrap node's port.
	RemotePort = 12000

	// RemoteHost is the bootstrap node's DNS name.
	RemoteHost = "localhost"

	// RemoteIP is the bootstrap node's IP address; when non-empty it
	// overrides DNS resolution of RemoteHost.
	RemoteIP = ""

	// Keyphrase is the shared admission token sent in JOIN.
	Keyphrase = ""

	// DebugMask is the per-channel log enable bitmask.
	DebugMask debugMaskFlag

	// DebugAll enables all log channels.
	DebugAll = false

	// SingleThreaded disables parallel dispatch of filesystem operations.
	SingleThreaded = false

	// Foreground selects foreground mode. magmad does not daemonize the
	// process itself in either mode; detaching is left to the host
	// process supervisor.
	Foreground = false

	// Mountpoint is the path at which the filesystem is exposed.
	Mountpoint = defaultMountpoint
)

// debugMaskFlag implements flag.Value for a comma-separated list of channel
// names (ring, wire, routing, client, admin, all).
type debugMaskFlag log.Channel

func (m *debugMaskFlag) String() string {
	return fmt.Sprintf("0x%x", uint32(*m))
}

func (m *debugMaskFlag) Set(s string) error {
	mask, err := parseDebugMask(s)
	if err != nil {
		return err
	}
	*m = debugMaskFlag(mask)
	log.SetDebugMask(mask)
	return nil
}

func (m *debugMaskFlag) Get() interface{} {
	return log.Channel(*m)
}

func parseDebugMask(s string) (log.Channel, error) {
	var mask log.Channel
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			name := s[start:i]
			start = i + 1
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
				return 0, fmt.Errorf("flags: unknown debug channel %q", name)
			}
		}
	}
	return mask, nil
}

// Parse sets up the command-line flags for the given flag variables and
// calls flag.Parse. Passing an unknown variable triggers a panic.
//
// For example:
//	flags.Parse(&flags.RemotePort, &flags.Keyphrase)
func Parse(vars ...interface{}) error {
	for i, v := range vars {
		unknown := false
		switch v := v.(type) {
		case *int:
			switch v {
			case &RemotePort:
				flag.IntVar(v, "remote-port", RemotePort, "bootstrap node port")
			default:
				unknown = true
			}
		case *string:
			switch v {
			case &RemoteHost:
				flag.StringVar(v, "remote-host", RemoteHost, "bootstrap node DNS name")
			case &RemoteIP:
				flag.StringVar(v, "remote-ip", RemoteIP, "bootstrap node IP, overrides remote-host when set")
			case &Keyphrase:
				flag.StringVar(v, "keyphrase", Keyphrase, "shared admission token sent in JOIN")
			case &Mountpoint:
				flag.StringVar(v, "mountpoint", Mountpoint, "path at which the filesystem is exposed")
			default:
				unknown = true
			}
		case *bool:
			switch v {
			case &DebugAll:
				flag.BoolVar(v, "debug-all", DebugAll, "enable all log channels")
			case &SingleThreaded:
				flag.BoolVar(v, "single-threaded", SingleThreaded, "disable parallel dispatch")
			case &Foreground:
				flag.BoolVar(v, "foreground", Foreground, "do not daemonize")
			default:
				unknown = true
			}
		case *debugMaskFlag:
			switch v {
			case &DebugMask:
				flag.Var(v, "debug-mask", "comma-separated per-channel log enables (ring,wire,routing,client,admin,all)")
			default:
				unknown = true
			}
		default:
			unknown = true
		}
		if unknown {
			msg := fmt.Sprintf("flags: unknown flag (%#v, arg %d)", v, i)
			if reflect.TypeOf(v).Kind() != reflect.Ptr {
				msg += ", expected pointer type"
			}
			panic(msg)
		}
	}
	flag.Parse()
	if DebugAll {
		log.SetDebugMask(log.ChannelAll)
	}
	return nil
}

// Server is the conventional set of flags for the magmad daemon.
var Server = []interface{}{
	&RemotePort, &RemoteHost, &RemoteIP, &Keyphrase,
	&DebugMask, &DebugAll, &SingleThreaded, &Foreground, &Mountpoint,
}
