package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aid-distribution/ticket-api/internal/adapters/csvtable"
	"github.com/aid-distribution/ticket-api/internal/app/distribution"
	"github.com/aid-distribution/ticket-api/internal/domain"
	platformclock "github.com/aid-distribution/ticket-api/internal/platform/clock"
	"github.com/aid-distribution/ticket-api/internal/platform/config"
	"github.com/aid-distribution/ticket-api/internal/platform/storage"
	"github.com/aid-distribution/ticket-api/internal/ports/out/recordstore"
)

var errMemoryNotPersistent = errors.New("the memory backend does not persist changes; use --storage=file, s3 or postgres")

type rootOptions struct {
	storage     string
	recordsFile string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions
	root := &cobra.Command{
		Use:           "ticketctl",
		Short:         "Inspect and update the beneficiary register",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.storage, "storage", "", "record store backend: file|memory|s3|postgres (default from STORAGE_BACKEND)")
	root.PersistentFlags().StringVar(&opts.recordsFile, "records-file", "", "CSV register path for the file backend (default from RECORDS_FILE)")

	root.AddCommand(
		newCheckCmd(&opts),
		newMarkCmd(&opts),
		newValidateCmd(&opts),
		newImportCmd(&opts),
		newExportCmd(&opts),
	)
	return root
}

// withStores loads the configuration, applies flag overrides and opens storage for fn.
func withStores(ctx context.Context, opts *rootOptions, fn func(storage.Stores) error) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	return openStores(ctx, cfg, fn)
}

// withWritableStores is withStores for commands that change the register. The memory
// backend is refused there: its changes would vanish when the command exits.
func withWritableStores(ctx context.Context, opts *rootOptions, fn func(storage.Stores) error) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}
	if cfg.Storage == config.BackendMemory {
		return errMemoryNotPersistent
	}
	return openStores(ctx, cfg, fn)
}

func resolveConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	if opts.storage != "" {
		cfg.Storage = strings.ToLower(opts.storage)
	}
	if opts.recordsFile != "" {
		cfg.RecordsFile = opts.recordsFile
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func openStores(ctx context.Context, cfg config.Config, fn func(storage.Stores) error) error {
	stores, err := storage.Open(ctx, cfg, platformclock.NewSystemClock())
	if err != nil {
		return err
	}
	defer stores.Close()
	return fn(stores)
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <ticket-code>",
		Short: "Show the descriptive field disclosed for a ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStores(cmd.Context(), opts, func(st storage.Stores) error {
				d, err := distribution.NewService(st.Records, nil, nil).CheckTicket(cmd.Context(), domain.TicketCode(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", d.Type, d.Info)
				return nil
			})
		},
	}
}

func newMarkCmd(opts *rootOptions) *cobra.Command {
	var jeton, nfi, outils, semence string
	cmd := &cobra.Command{
		Use:   "mark <ticket-code>",
		Short: "Record distributed milestones for a ticket",
		Long: "Only the milestone flags given on the command line are written; the others keep their value.\n" +
			"A bare flag writes \"Oui\"; use --flag=value for anything else.\n\n" +
			"Example: ticketctl mark T1 --jeton --nfi --outils=Non",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flag := func(name, v string) distribution.Optional[string] {
				if cmd.Flags().Changed(name) {
					return distribution.Some(v)
				}
				return distribution.Unspecified[string]()
			}
			upd := distribution.MilestoneUpdate{
				Jeton:   flag("jeton", jeton),
				NFI:     flag("nfi", nfi),
				Outils:  flag("outils", outils),
				Semence: flag("semence", semence),
			}
			return withWritableStores(cmd.Context(), opts, func(st storage.Stores) error {
				msg, err := distribution.NewService(st.Records, nil, nil).MarkAsServed(cmd.Context(), domain.TicketCode(args[0]), upd)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&jeton, "jeton", domain.Served, "value for "+domain.ColumnJeton)
	cmd.Flags().StringVar(&nfi, "nfi", domain.Served, "value for "+domain.ColumnNFI)
	cmd.Flags().StringVar(&outils, "outils", domain.Served, "value for "+domain.ColumnOutils)
	cmd.Flags().StringVar(&semence, "semence", domain.Served, "value for "+domain.ColumnSemence)
	for _, name := range []string{"jeton", "nfi", "outils", "semence"} {
		cmd.Flags().Lookup(name).NoOptDefVal = domain.Served
	}
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the register schema without changing it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), opts, func(st storage.Stores) error {
				r, err := distribution.NewService(st.Records, nil, nil).Validate(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "location:     %s\n", r.Location)
				fmt.Fprintf(out, "columns:      %d\n", len(r.Columns))
				fmt.Fprintf(out, "records:      %d\n", r.Records)
				fmt.Fprintf(out, "fully served: %d\n", r.FullyServed)
				for _, c := range r.MissingColumns {
					fmt.Fprintf(out, "missing column: %s\n", c)
				}
				for _, t := range r.DuplicateTickets {
					fmt.Fprintf(out, "duplicate ticket: %s\n", t)
				}
				if !r.OK() {
					return errors.New("register has schema problems")
				}
				return nil
			})
		},
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "import <csv-path>",
		Short: "Replace the configured register with the contents of a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readCSV(args[0])
			if err != nil {
				return err
			}
			if missing := domain.ResolveLayout(t.Columns).Missing(domain.ColumnTicketCode); len(missing) > 0 {
				return fmt.Errorf("%s: missing column %q", args[0], missing[0])
			}
			return withWritableStores(cmd.Context(), opts, func(st storage.Stores) error {
				if !force {
					if _, err := st.Records.Load(cmd.Context()); err == nil {
						return fmt.Errorf("%s already holds a register; use --force to replace it", st.Records.Location())
					} else if !errors.Is(err, recordstore.ErrNotFound) {
						return err
					}
				}
				if err := st.Records.Save(cmd.Context(), t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d records into %s\n", len(t.Rows), st.Records.Location())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing register")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the configured register to stdout as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStores(cmd.Context(), opts, func(st storage.Stores) error {
				t, err := st.Records.Load(cmd.Context())
				if err != nil {
					return err
				}
				return csvtable.Encode(cmd.OutOrStdout(), t)
			})
		},
	}
}

func readCSV(path string) (recordstore.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return recordstore.Table{}, err
	}
	defer f.Close()
	t, err := csvtable.Decode(f)
	if err != nil {
		return recordstore.Table{}, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}
