package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Flags holds parsed command-line flags.
type Flags struct {
	P2PPort  int
	Seeds    string
	MaxPeers int

	RPCAddr string
	RPCPort int

	Mine     bool
	Coinbase string

	LogLevel string
	LogFile  string
	LogJSON  bool

	SetMine    bool
	SetLogJSON bool
}

// ParseFlags parses os.Args[1:] into a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}
	fs := flag.NewFlagSet("jijid", flag.ContinueOnError)

	fs.IntVar(&f.P2PPort, "p2p-port", 0, "P2P listen port")
	fs.StringVar(&f.Seeds, "seeds", "", "bootstrap peers as comma-separated host:port")
	fs.IntVar(&f.MaxPeers, "maxpeers", 0, "maximum number of peers (stored in the config; the node's P2P server uses the default of 50)")

	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")

	fs.BoolVar(&f.Mine, "mine", false, "enable block production")
	fs.StringVar(&f.Coinbase, "coinbase", "", "hex public key to receive block rewards")

	fs.StringVar(&f.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "log file path (default: stdout)")
	fs.BoolVar(&f.LogJSON, "log-json", false, "emit logs as JSON")

	fs.Usage = printUsage

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	f.SetMine = isFlagSet(fs, "mine")
	f.SetLogJSON = isFlagSet(fs, "log-json")

	return f
}

// ApplyFlags layers f onto cfg, overriding only fields the user actually
// set (non-empty strings, non-zero ports, explicitly-set bools).
func ApplyFlags(cfg *Config, f *Flags) {
	if f.P2PPort != 0 {
		cfg.P2P.Port = f.P2PPort
	}
	if f.Seeds != "" {
		cfg.P2P.Seeds = splitList(f.Seeds)
	}
	if f.MaxPeers != 0 {
		cfg.P2P.MaxPeers = f.MaxPeers
	}

	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.SetMine {
		cfg.Mining.Enabled = f.Mine
	}
	if f.Coinbase != "" {
		cfg.Mining.Coinbase = f.Coinbase
	}

	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func printUsage() {
	fmt.Fprint(os.Stderr, `jijid - a proof-of-work node for the jiji social chain

Usage:
  jijid [options]

P2P options:
  --p2p-port        P2P listen port (default: 9333)
  --seeds           bootstrap peers as comma-separated host:port
  --maxpeers        maximum number of peers (default: 50); stored in the
                    config only, the node's P2P server always uses 50

RPC options:
  --rpc-addr        RPC listen address (default: 127.0.0.1)
  --rpc-port        RPC listen port (default: 9332)
  (also serves Prometheus metrics at /metrics)

Mining options:
  --mine            enable block production
  --coinbase        hex public key to receive block rewards

Logging options:
  --log-level       log level: debug, info, warn, error (default: info)
  --log-file        log file path (default: stdout)
  --log-json        emit logs as JSON
`)
}

// Load builds a Config from defaults overridden by command-line flags.
func Load() (*Config, *Flags) {
	flags := ParseFlags()
	cfg := Default()
	ApplyFlags(cfg, flags)
	return cfg, flags
}
