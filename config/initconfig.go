// Package config creates a magmad configuration from compiled-in
// defaults overlaid by a YAML rc file; cmd/magmad then applies
// command-line flags on top. Environment variables are not consulted.
// This follows the same layered approach as the teacher's config package.
package config // import "magma.io/config"

import (
	"io"
	"io/ioutil"
	"net"
	"os"
	osuser "os/user"
	"path/filepath"
	"strconv"

	yaml "gopkg.in/yaml.v2"

	"magma.io/errors"
)

// Config holds the configuration options of §6: the bootstrap node
// address, the shared join keyphrase, the debug/runtime switches, and the
// mountpoint.
type Config struct {
	RemotePort     int    `yaml:"remote-port"`
	RemoteHost     string `yaml:"remote-host"`
	RemoteIP       string `yaml:"remote-ip"`
	Keyphrase      string `yaml:"keyphrase"`
	DebugMask      string `yaml:"debug-mask"`
	DebugAll       bool   `yaml:"debug-all"`
	SingleThreaded bool   `yaml:"single-threaded"`
	Foreground     bool   `yaml:"foreground"`
	Mountpoint     string `yaml:"mountpoint"`
}

// Default returns a Config with every field set to its documented default.
func Default() Config {
	return Config{
		RemotePort: 12000,
		RemoteHost: "localhost",
	}
}

// BootstrapAddr returns the host:port of the bootstrap node, preferring
// RemoteIP over RemoteHost when both are set (§6 remote-ip "overrides DNS
// resolution of remote-host").
func (c Config) BootstrapAddr() string {
	host := c.RemoteHost
	if c.RemoteIP != "" {
		host = c.RemoteIP
	}
	port := c.RemotePort
	if port == 0 {
		port = 12000
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// FromFile reads a Config from the named YAML file. If the file cannot be
// opened but the name can be found relative to $HOME/.magma, that file is
// used instead.
func FromFile(name string) (Config, error) {
	const op = "config.FromFile"
	f, err := os.Open(name)
	if err != nil && !filepath.IsAbs(name) && os.IsNotExist(err) {
		if home, errHome := Homedir(); errHome == nil {
			f, err = os.Open(filepath.Join(home, ".magma", name))
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, errors.E(op, errors.NotExist, err)
		}
		return Config{}, errors.E(op, err)
	}
	defer f.Close()
	return FromReader(f)
}

// FromReader parses a Config from r, a YAML document whose keys are the
// hyphenated option names of §6. Unset keys retain the values from
// Default.
func FromReader(r io.Reader) (Config, error) {
	const op = "config.FromReader"
	cfg := Default()
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return Config{}, errors.E(op, err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.E(op, errors.Invalid, errors.Errorf("parsing YAML file: %v", err))
	}
	return cfg, nil
}

// Homedir returns the home directory of the OS' logged-in user.
func Homedir() (string, error) {
	u, err := osuser.Current()
	if u == nil {
		e := errors.Str("lookup of current user failed")
		if err != nil {
			e = errors.Errorf("%v: %v", e, err)
		}
		return "", e
	}
	if u.HomeDir == "" {
		return "", errors.E(errors.NotExist, errors.Str("user home directory not found"))
	}
	return u.HomeDir, nil
}
