package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
)

func (a *app) describeCmd() *cobra.Command {
	var setOut string
	cmd := &cobra.Command{
		Use:   "describe <proto_file> [message_name]",
		Short: "Print resolved descriptors in protobuf text format",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.loadCatalog(args[0])
			if err != nil {
				return err
			}
			if setOut != "" {
				b, err := proto.MarshalOptions{Deterministic: true}.Marshal(cat.FileDescriptorSet())
				if err != nil {
					return err
				}
				if err := os.WriteFile(setOut, b, 0o644); err != nil {
					return fmt.Errorf("writing descriptor set: %w", err)
				}
				a.log.Debug().Str("path", setOut).Int("files", len(cat.Files())).Msg("wrote descriptor set")
			}
			opts := prototext.MarshalOptions{Multiline: true}
			if len(args) == 2 {
				md, err := cat.LookupMessage(args[1])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(a.stdout, opts.Format(md.DescriptorProto()))
				return err
			}
			_, err = fmt.Fprintln(a.stdout, opts.Format(cat.Root().DescriptorProto()))
			return err
		},
	}
	cmd.Flags().StringVarP(&setOut, "descriptor_set_out", "o", "", "also write a binary FileDescriptorSet to this path")
	return cmd
}
