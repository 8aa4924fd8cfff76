package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/imclient/internal/errors"
	"github.com/vango-dev/imclient/pkg/notice"
	"github.com/vango-dev/imclient/pkg/protocol"
	"github.com/vango-dev/imclient/pkg/tars"
)

func decodeCmd() *cobra.Command {
	var (
		isHex  bool
		packet bool
	)

	cmd := &cobra.Command{
		Use:   "decode [file]",
		Short: "Print the fields of an encoded structure",
		Long: `Decode a Tars encoded structure and print its fields. With --packet the
input is a length-prefixed frame; its header is printed and the body is
decoded as the notice or response it carries.

Input is read from the file, or stdin when no file is given.

Examples:
  imclient decode --hex body.hex
  imclient decode --packet capture.bin`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if len(args) == 1 {
				data, err = os.ReadFile(args[0])
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return errors.New("E140").Wrap(err)
			}
			if isHex {
				data, err = hex.DecodeString(string(bytes.TrimSpace(data)))
				if err != nil {
					return errors.New("E140").Wrap(err).WithSuggestion("Input must be hex digits without separators")
				}
			}
			out, err := decode(data, packet)
			fmt.Fprint(cmd.OutOrStdout(), out)
			if err != nil {
				return errors.New("E121").Wrap(err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&isHex, "hex", "x", false, "Input is hex encoded")
	cmd.Flags().BoolVarP(&packet, "packet", "p", false, "Input is a length-prefixed frame")
	return cmd
}

// decode renders data. Tables are applied when the frame's command has a
// known notice payload.
func decode(data []byte, packet bool) (string, error) {
	if !packet {
		return tars.Dump(data, nil), nil
	}
	f, err := protocol.DecodePacket(data)
	if err != nil {
		return "", err
	}
	var table *tars.Table
	if f.Kind == protocol.KindPush {
		if n, err := notice.DecodeNotice(f); err == nil {
			if t, ok := n.Payload.(tars.Tabled); ok {
				table = t.TarsTable()
			}
		}
	}
	return fmt.Sprintf("%s\n%s", f, tars.Dump(f.Body, table)), nil
}
