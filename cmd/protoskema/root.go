package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/config"
	"github.com/reoring/protoskema/schema"
	drvgojson "github.com/reoring/protoskema/source/gojson"
)

// app holds the state shared by every subcommand of one invocation.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	protoPaths []string
	verbose    bool
	cfgFile    string
	jsonDriver string

	cfg *config.Config
	log zerolog.Logger
}

// run executes the command line and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "protoskema",
		Short: "Convert between protobuf binary and JSON using .proto files",
		Long: `protoskema loads .proto files at run time and converts messages between
the protobuf binary wire format and JSON.

Data is read from the optional [data] argument: "@path" reads a file and any
other value is used literally (JSON for to-proto, base64 for to-json). Without
it, input is read from stdin. gzip and zstd input is decompressed.

Examples:
  protoskema to-proto -I protos person.proto Person '{"name":"A","id":7}'
  protoskema to-json -I protos person.proto Person CgFBEAc=
  protoskema describe -I protos person.proto Person`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	pf := root.PersistentFlags()
	pf.StringArrayVarP(&a.protoPaths, "proto_path", "I", nil, "directory to search for imports (repeatable, default .)")
	pf.BoolVar(&a.verbose, "verbose", false, "print descriptors and debug logs to stderr")
	pf.StringVar(&a.cfgFile, "config", "", "YAML or TOML config file")
	pf.StringVar(&a.jsonDriver, "json-driver", "", "JSON tokenizer: encoding/json or go-json")

	root.AddCommand(a.toProtoCmd(), a.toJSONCmd(), a.describeCmd())
	return root
}

// setup merges the config file with flags, builds the logger and selects the
// JSON driver. Flags override file values.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		cfg, err := config.Load(a.cfgFile)
		if err != nil {
			return err
		}
		a.cfg = cfg
	} else {
		a.cfg = config.Default()
	}
	flags := cmd.Flags()
	if flags.Changed("proto_path") || len(a.cfg.ProtoPath) == 0 {
		a.cfg.ProtoPath = a.protoPaths
	}
	if flags.Changed("verbose") {
		a.cfg.Verbose = a.verbose
	}
	if flags.Changed("json-driver") {
		a.cfg.JSONDriver = a.jsonDriver
	}

	level := zerolog.WarnLevel
	if a.cfg.Verbose {
		level = zerolog.DebugLevel
	}
	a.log = zerolog.New(zerolog.ConsoleWriter{Out: a.stderr, NoColor: true}).Level(level).With().Timestamp().Logger()

	switch strings.ToLower(a.cfg.JSONDriver) {
	case "", "encoding/json":
		protoskema.UseDefaultJSONDriver()
	case "go-json":
		protoskema.SetJSONDriver(drvgojson.Driver())
	default:
		return fmt.Errorf("unknown JSON driver %q", a.cfg.JSONDriver)
	}
	a.log.Debug().Str("driver", protoskema.CurrentJSONDriver().Name()).Strs("proto_path", a.cfg.ProtoPath).Msg("configured")
	return nil
}

// loadCatalog resolves protoFile against the configured proto paths and
// reports every schema error in the classic single-line format.
func (a *app) loadCatalog(protoFile string) (*schema.Catalog, error) {
	r := &schema.Resolver{
		Sources: schema.DiskSourceTree{Roots: a.cfg.ProtoPath},
		Sink: schema.DiagnosticFunc(func(d schema.Diagnostic) {
			fmt.Fprintf(a.stderr, "Error occurred for %s:%d:%d %s\n", d.File, d.Line, d.Column, d.Message)
		}),
		Logger: a.log,
	}
	cat, err := r.Resolve(protoFile)
	if err != nil {
		iss, _ := protoskema.AsIssues(err)
		return nil, fmt.Errorf("failed to load %s (%d errors)", protoFile, len(iss))
	}
	return cat, nil
}
