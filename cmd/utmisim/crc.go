package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ardnew/utmisim/crc"
	"github.com/ardnew/utmisim/packet"
)

const (
	EndpointOptionName = "endpoint"
	AddressOptionName  = "address"
)

func newCRC16Command() *cobra.Command {
	return &cobra.Command{
		Use:   "crc16 HEX",
		Short: "Compute the CRC16 of a data payload",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args)
			if err != nil {
				return err
			}
			sum := crc.CRC16(data)
			fmt.Fprintf(cmd.OutOrStdout(), "0x%04X (wire: %02X %02X)\n", sum, byte(sum), byte(sum>>8))
			return nil
		},
	}
}

func newCRC5Command() *cobra.Command {
	var ep, addr uint8
	cmd := &cobra.Command{
		Use:   "crc5",
		Short: "Compute the CRC5 of a token's endpoint and address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ep > packet.MaxEndpoint || addr > packet.MaxAddress {
				return fmt.Errorf("endpoint %d, address %d: out of range", ep, addr)
			}
			sum := crc.TokenCRC5(ep, addr)
			tok := packet.NewToken(packet.TokenConfig{PID: packet.PIDOut, Endpoint: ep, Address: addr})
			fmt.Fprintf(cmd.OutOrStdout(), "0x%02X (OUT token: % X)\n", sum, tok.Bytes(packet.FormWire))
			return nil
		},
	}
	cmd.Flags().Uint8Var(&ep, EndpointOptionName, 0, "Endpoint number (0-15)")
	cmd.Flags().Uint8Var(&addr, AddressOptionName, 0, "Device address (0-127)")
	return cmd
}

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode HEX",
		Short: "Decode captured packet bytes",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := parseHex(args)
			if err != nil {
				return err
			}
			l, err := packet.Decode(data)
			if err != nil {
				return fmt.Errorf("decode % X: %w", data, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), l)
			return nil
		},
	}
}

// parseHex joins args and decodes them as hex, ignoring spaces, colons and
// 0x prefixes.
func parseHex(args []string) ([]byte, error) {
	s := strings.Join(args, "")
	s = strings.ReplaceAll(s, "0x", "")
	s = strings.ReplaceAll(s, "0X", "")
	s = strings.NewReplacer(" ", "", ":", "", ",", "").Replace(s)
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("hex %q: %w", strings.Join(args, " "), err)
	}
	return data, nil
}
