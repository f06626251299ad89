package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/ardnew/utmisim/pkg/config"
	"github.com/ardnew/utmisim/store"
)

const VerboseOptionName = "verbose"

func newRunsCommand(opts *options) *cobra.Command {
	var (
		path    string
		verbose bool
	)
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the runs recorded in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := store.Open(storePath(opts, path))
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.Runs()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if verbose {
				data, err := yaml.Marshal(runs)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%4d  %s  %-10s %s\n", r.ID, r.Started.Format("2006-01-02 15:04:05"), r.Name, r.Summary)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, StoreOptionName, "", "Store database path")
	cmd.Flags().BoolVarP(&verbose, VerboseOptionName, "v", false, "Print every field of each run as YAML")
	return cmd
}

func newConfigCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Default().Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
