// Package cli wires the commands: every query subcommand opens a Session for
// the platform named by --dsc and prints either human-readable text or JSON.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/edk2nav/edk2nav/internal/config"
	"github.com/edk2nav/edk2nav/internal/logging"
	"github.com/edk2nav/edk2nav/internal/query"
)

// options collects the persistent flags shared by every subcommand. Values
// left empty fall back to the config file, then to built-in defaults.
type options struct {
	dsc         string
	workspace   string
	platformDir string
	target      string
	arch        string
	toolchain   string
	defines     []string
	configPath  string
	noCache     bool
	jsonOutput  bool
	logLevel    string
	logFormat   string
}

func NewRootCommand(version string) *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "edk2nav",
		Short: "Navigate EDK2 firmware builds without running one",
		Long: `edk2nav parses a platform descriptor (DSC) and the module descriptors
(INF) it pulls in, resolves library-class bindings into a dependency
graph, and indexes the C sources of every included module. Queries run
against that picture: which modules a platform builds, what a module
depends on, where a function lives, and who calls it.

Parsed platforms are cached and revalidated against the descriptor's
content hash, so repeat queries skip the parse.`,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.dsc, "dsc", "", "Platform descriptor (DSC) to query")
	pf.StringVar(&opts.workspace, "workspace", "", "EDK2 workspace root for path resolution")
	pf.StringVar(&opts.platformDir, "platform-dir", "", "Platform repository directory, tried after the workspace root")
	pf.StringVar(&opts.target, "target", "", "Build target (default DEBUG)")
	pf.StringVar(&opts.arch, "arch", "", "Build architecture (default X64)")
	pf.StringVar(&opts.toolchain, "toolchain", "", "Toolchain tag (no default)")
	pf.StringArrayVarP(&opts.defines, "define", "D", nil, "Extra build define KEY=VALUE (repeatable)")
	pf.StringVar(&opts.configPath, "config", "", "Config file (default "+config.DefaultFileName+" if present)")
	pf.BoolVar(&opts.noCache, "no-cache", false, "Bypass the build-context cache")
	pf.BoolVar(&opts.jsonOutput, "json", false, "Print machine-readable JSON")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text|json")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "edk2nav %s\n", version)
		},
	}

	rootCmd.AddCommand(
		newModulesCommand(opts),
		newDepsCommand(opts),
		newFunctionCommand(opts),
		newTraceCommand(opts),
		newSearchCommand(opts),
		newCacheCommand(opts),
		versionCmd,
	)

	return rootCmd
}

// loadConfig reads the config file and overlays it with flag values.
func (o *options) loadConfig() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if o.workspace != "" {
		cfg.WorkspaceRoot = o.workspace
	}
	if o.platformDir != "" {
		cfg.PlatformDir = o.platformDir
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

// buildFlags assembles the build configuration from the target/arch/toolchain
// flags and the repeatable --define entries.
func (o *options) buildFlags() (map[string]string, error) {
	flags := make(map[string]string)
	for _, define := range o.defines {
		key, value, ok := cutDefine(define)
		if !ok {
			return nil, fmt.Errorf("malformed --define %q, want KEY=VALUE", define)
		}
		flags[key] = value
	}
	if o.target != "" {
		flags["TARGET"] = o.target
	}
	if o.arch != "" {
		flags["ARCH"] = o.arch
	}
	if o.toolchain != "" {
		flags["TOOLCHAIN"] = o.toolchain
	}
	return flags, nil
}

// openSession validates the flags and opens the platform session.
func (o *options) openSession() (*query.Session, error) {
	if o.dsc == "" {
		return nil, fmt.Errorf("no platform descriptor given, use --dsc")
	}

	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	flags, err := o.buildFlags()
	if err != nil {
		return nil, err
	}

	return query.Open(o.dsc, flags, query.Options{
		WorkspaceRoot: cfg.WorkspaceRoot,
		PlatformDir:   cfg.PlatformDir,
		CacheDir:      cfg.CacheDir,
		CacheTTL:      cfg.CacheTTL(),
		DisableCache:  o.noCache,
		Logger:        logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr),
	})
}
