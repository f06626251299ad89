package main

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"github.com/ardnew/utmisim/packet"
	"github.com/ardnew/utmisim/pkg"
	"github.com/ardnew/utmisim/store"
)

const MaxPayloadOptionName = "max-payload"

func newVectorsCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vectors",
		Short: "Generate and inspect packet test vectors",
	}
	cmd.AddCommand(newVectorsListCommand(opts))
	cmd.AddCommand(newVectorsSaveCommand(opts))
	cmd.AddCommand(newVectorsShowCommand(opts))
	return cmd
}

func catalog(opts *options, maxPayload int) []packet.Vector {
	if maxPayload <= 0 {
		maxPayload = opts.cfg.Vectors.MaxPayload
	}
	return packet.Catalog(maxPayload)
}

func newVectorsListCommand(opts *options) *cobra.Command {
	var maxPayload int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the generated vector catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, v := range catalog(opts, maxPayload) {
				fmt.Fprintf(out, "%-26s % X\t%s\n", v.Name, v.Packet.Bytes(packet.FormWire), v.Description)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPayload, MaxPayloadOptionName, 0, "Largest data payload to generate")
	return cmd
}

func newVectorsSaveCommand(opts *options) *cobra.Command {
	var (
		maxPayload int
		path       string
	)
	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the vector catalog to the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(storePath(opts, path))
			if err != nil {
				return err
			}
			defer db.Close()

			vectors := catalog(opts, maxPayload)
			for _, v := range vectors {
				rec, err := store.FromVector(v)
				if err != nil {
					return err
				}
				if err := db.PutVector(rec); err != nil {
					return err
				}
			}
			pkg.LogInfo(pkg.ComponentCLI, "vectors saved", "count", len(vectors), "store", db.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "saved %d vectors to %s\n", len(vectors), db.Path())
			return nil
		},
	}
	cmd.Flags().IntVar(&maxPayload, MaxPayloadOptionName, 0, "Largest data payload to generate")
	cmd.Flags().StringVar(&path, StoreOptionName, "", "Store database path")
	return cmd
}

func newVectorsShowCommand(opts *options) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored vector and its decoded fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(storePath(opts, path))
			if err != nil {
				return err
			}
			defer db.Close()

			rec, err := db.Vector(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n\twire: %s\n\tkind: %s\n\tpid: %s\n\tcrc valid: %t\n",
				rec.Name, rec.Description, rec.Wire, rec.Kind, rec.PID, rec.CRCValid)
			b, err := rec.Bytes()
			if err != nil {
				return err
			}
			l, err := packet.Decode(b)
			if err != nil {
				fmt.Fprintf(out, "\tdecoded: %v\n", err)
				return nil
			}
			fmt.Fprintf(out, "\tdecoded: %s\n", l)
			if !l.CRCValid() {
				fixed, err := packet.Serialize(l, gopacket.SerializeOptions{ComputeChecksums: true})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\tcorrected: % X\n", fixed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, StoreOptionName, "", "Store database path")
	return cmd
}

func storePath(opts *options, flag string) string {
	if flag != "" {
		return flag
	}
	return opts.cfg.Store
}
