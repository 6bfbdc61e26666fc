package main

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/email"
)

func newAddressCmd(opts *options) *cobra.Command {
	var (
		id        int64
		namespace string
	)

	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the signed reply address for a record id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, signer, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if namespace == "" {
				namespace = cfg.Namespace
			}
			addr, err := signer.Encode(namespace, cfg.Base().Spec(), id)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), addr)
			return err
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "record id to encode")
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace, defaults to the configured one")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func newResolveCmd(opts *options) *cobra.Command {
	var namespace string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the verified record ids of a message read from stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, signer, err := setup(opts)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			if namespace == "" {
				namespace = cfg.Namespace
			}

			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			msg, err := email.Parse(raw)
			if err != nil {
				return err
			}

			ids := addressing.NewResolver(signer, log).Resolve(msg, namespace, cfg.Base())
			return json.NewEncoder(cmd.OutOrStdout()).Encode(ids)
		},
	}
	cmd.Flags().StringVar(&namespace, "namespace", "", "namespace, defaults to the configured one")
	return cmd
}
