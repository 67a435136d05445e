package main

import (
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/internal/input"
	"github.com/reoring/protoskema/jsoncodec"
	"github.com/reoring/protoskema/schema"
	"github.com/reoring/protoskema/transcode"
)

type printFlags struct {
	preserveNames   bool
	alwaysPrimitive bool
	enumsAsInts     bool
	whitespace      bool
	indent          string
}

func (a *app) toProtoCmd() *cobra.Command {
	var (
		strict    bool
		dupKey    string
		base64Out bool
	)
	cmd := &cobra.Command{
		Use:     "to-proto <proto_file> <message_name> [data]",
		Aliases: []string{"ToProto", "toproto"},
		Short:   "Convert JSON to protobuf binary",
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := transcode.Options{FromJSON: a.cfg.UnmarshalOptions(), Logger: a.log}
			if cmd.Flags().Changed("strict") {
				opts.FromJSON.Unknown = protoskema.UnknownStrip
				if strict {
					opts.FromJSON.Unknown = protoskema.UnknownStrict
				}
			}
			if cmd.Flags().Changed("duplicate-key") {
				sev, err := parseSeverity(dupKey)
				if err != nil {
					return err
				}
				opts.FromJSON.Strictness.OnDuplicateKey = sev
			}
			opts.FromJSON.IssueSink = func(it protoskema.Issue) {
				a.log.Warn().Str("code", it.Code).Str("path", it.Path).Int64("offset", it.Offset).Msg(it.Message)
			}
			opts.FromWire.RecursionLimit = a.cfg.Decode.RecursionLimit

			tc, err := a.transcoder(args, opts)
			if err != nil {
				return err
			}
			data, _, err := input.Read(dataArg(args), a.stdin)
			if err != nil {
				return err
			}
			out, err := tc.JSONToBinary(data)
			if err != nil {
				return err
			}
			if base64Out {
				_, err = fmt.Fprintln(a.stdout, base64.StdEncoding.EncodeToString(out))
				return err
			}
			_, err = a.stdout.Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "reject JSON keys that match no field")
	cmd.Flags().StringVar(&dupKey, "duplicate-key", "ignore", "duplicate JSON keys: ignore, warn or error")
	cmd.Flags().BoolVar(&base64Out, "base64", false, "write the binary output as base64 text")
	return cmd
}

func (a *app) toJSONCmd() *cobra.Command {
	var pf printFlags
	cmd := &cobra.Command{
		Use:     "to-json <proto_file> <message_name> [data]",
		Aliases: []string{"ToJson", "tojson"},
		Short:   "Convert protobuf binary to JSON",
		Args:    cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			mo := a.cfg.MarshalOptions(jsoncodec.MarshalOptions{PreserveFieldNames: true, AddWhitespace: true})
			f := cmd.Flags()
			if f.Changed("preserve-field-names") {
				mo.PreserveFieldNames = pf.preserveNames
			}
			if f.Changed("always-print-primitive-fields") {
				mo.AlwaysPrintPrimitiveFields = pf.alwaysPrimitive
			}
			if f.Changed("always-print-enums-as-ints") {
				mo.AlwaysPrintEnumsAsInts = pf.enumsAsInts
			}
			if f.Changed("add-whitespace") {
				mo.AddWhitespace = pf.whitespace
			}
			if f.Changed("indent") {
				mo.Indent = pf.indent
			}
			opts := transcode.Options{JSON: mo, Logger: a.log}
			opts.FromWire.RecursionLimit = a.cfg.Decode.RecursionLimit

			tc, err := a.transcoder(args, opts)
			if err != nil {
				return err
			}
			data, origin, err := input.Read(dataArg(args), a.stdin)
			if err != nil {
				return err
			}
			if origin == input.FromLiteral {
				if data, err = input.DecodeBase64(string(data)); err != nil {
					return err
				}
			}
			out, err := tc.BinaryToJSON(data)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(a.stdout, "%s\n", out)
			return err
		},
	}
	f := cmd.Flags()
	f.BoolVar(&pf.preserveNames, "preserve-field-names", true, "use field names from the .proto file instead of lowerCamelCase")
	f.BoolVar(&pf.alwaysPrimitive, "always-print-primitive-fields", false, "print scalar fields that hold their default value")
	f.BoolVar(&pf.enumsAsInts, "always-print-enums-as-ints", false, "print enum values as numbers")
	f.BoolVar(&pf.whitespace, "add-whitespace", true, "pretty-print the output")
	f.StringVar(&pf.indent, "indent", "  ", "indentation used with --add-whitespace")
	return cmd
}

func (a *app) transcoder(args []string, opts transcode.Options) (*transcode.Transcoder, error) {
	cat, err := a.loadCatalog(args[0])
	if err != nil {
		return nil, err
	}
	tc, err := transcode.New(cat, args[1], opts)
	if err != nil {
		return nil, err
	}
	if a.cfg.Verbose {
		a.dumpDescriptors(cat.Root(), tc.Descriptor())
	}
	return tc, nil
}

// dumpDescriptors prints the root file and the selected message in text
// format.
func (a *app) dumpDescriptors(f *schema.File, md *schema.MessageDescriptor) {
	opts := prototext.MarshalOptions{Multiline: true}
	fmt.Fprintln(a.stderr, opts.Format(f.DescriptorProto()))
	if md != nil {
		fmt.Fprintln(a.stderr, opts.Format(md.DescriptorProto()))
	}
}

func dataArg(args []string) string {
	if len(args) > 2 {
		return args[2]
	}
	return ""
}

func parseSeverity(s string) (protoskema.Severity, error) {
	switch s {
	case "ignore":
		return protoskema.Ignore, nil
	case "warn":
		return protoskema.Warn, nil
	case "error":
		return protoskema.Error, nil
	}
	return 0, fmt.Errorf("invalid duplicate key mode %q", s)
}
