// Command pidcheck validates P&ID schematics against the component catalog.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"

	"pidcheck/internal/blob"
	"pidcheck/internal/catalog"
	"pidcheck/internal/config"
	"pidcheck/internal/core"
	"pidcheck/internal/ctxlog"
	"pidcheck/internal/report"
	"pidcheck/pkg/domain"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	exitFunc = os.Exit
	getenv   = os.Getenv
)

// Exit codes.
const (
	exitOK      = 0
	exitInvalid = 1
	exitError   = 2
)

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

// statusError carries a non-zero exit code for a run that completed but whose
// outcome should fail the process.
type statusError struct {
	code   int
	status domain.Status
}

func (e statusError) Error() string { return fmt.Sprintf("schematic is %s", e.status) }

func cli(args []string, stdout, stderr io.Writer) int {
	root := rootCmd(stdout, stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(context.Background()); err != nil {
		var se statusError
		if errors.As(err, &se) {
			return se.code
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// globals holds the persistent flags shared by every command.
type globals struct {
	configPath string
	catalogs   []string
	logLevel   string
	trace      bool
	stderr     io.Writer
}

// env is the resolved runtime of one command invocation.
type env struct {
	cfg     config.Config
	logger  *slog.Logger
	catalog *catalog.Catalog
}

func (g *globals) load() (*env, error) {
	cfg, err := config.Load(g.configPath, getenv)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	cfg.CatalogPaths = append(cfg.CatalogPaths, g.catalogs...)
	logger := ctxlog.New(g.stderr, cfg.LogLevel, cfg.LogFormat)
	cat, err := catalog.Load(cfg.CatalogPaths,
		catalog.WithLogger(logger),
		catalog.WithDerivedNames(cfg.DerivedTable().Names()...),
	)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger, catalog: cat}, nil
}

// service builds a core.Service over the configured store and archive.
func (g *globals) service(ctx context.Context, e *env, opts ...core.Option) (*core.Service, error) {
	store, err := core.OpenPersistentStore(ctx, e.cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	blobs, err := blob.Open(ctx, e.cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	base := []core.Option{
		core.WithLogger(e.logger),
		core.WithStore(store),
		core.WithBlobStore(blobs),
		core.WithDerivedTable(e.cfg.DerivedTable()),
		core.WithCompatibility(e.cfg.CompatibilityTable()),
	}
	if g.trace {
		base = append(base, core.WithTracer(core.NewJSONTracer(g.stderr)))
	}
	return core.NewService(e.catalog, append(base, opts...)...), nil
}

func rootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globals{stderr: stderr}
	cmd := &cobra.Command{
		Use:           "pidcheck",
		Short:         "Validate P&ID schematics against engineering constraints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "config file path (YAML)")
	cmd.PersistentFlags().StringArrayVar(&g.catalogs, "catalog", nil, "extra catalog file (.yaml, .json, .hcl); repeatable")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&g.trace, "trace", false, "write operation spans as JSON lines to stderr")

	cmd.AddCommand(
		typesCmd(g, stdout),
		typeCmd(g, stdout),
		validateCmd(g, stdout),
		serveCmd(g),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, _ []string) {
				_, _ = fmt.Fprintf(stdout, "pidcheck version %s\n", version)
			},
		},
	)
	return cmd
}

func typesCmd(g *globals, stdout io.Writer) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List component types in catalog order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			types := e.catalog.List()
			if asJSON {
				return writeJSON(stdout, types)
			}
			tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "ID\tCATEGORY\tNAME\tCONSTRAINTS")
			for _, t := range types {
				_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Category, t.Name, len(t.Constraints))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func typeCmd(g *globals, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "type <id>",
		Short: "Print one component type as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.load()
			if err != nil {
				return err
			}
			t, err := e.catalog.Get(args[0])
			if err != nil {
				return err
			}
			return writeJSON(stdout, t)
		},
	}
}

func validateCmd(g *globals, stdout io.Writer) *cobra.Command {
	var (
		format  string
		archive bool
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a schematic document",
		Long: `Validate a schematic JSON document (comments and trailing commas allowed).

Exit status is 1 when the schematic is invalid, or incomplete with --strict,
and 2 when the document cannot be read or built.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q", format)
			}
			e, err := g.load()
			if err != nil {
				return err
			}
			ctx := ctxlog.WithLogger(cmd.Context(), e.logger)
			payload, err := readPayload(args[0])
			if err != nil {
				return err
			}
			svc, err := g.service(ctx, e)
			if err != nil {
				return err
			}
			r, err := svc.ValidatePayload(ctx, payload)
			if err != nil {
				return err
			}
			if archive {
				info, err := svc.ArchiveReport(ctx, r)
				if err != nil {
					return fmt.Errorf("archive report: %w", err)
				}
				e.logger.Info("report archived", "key", info.Key, "driver", svc.Blobs().Driver())
			}
			if format == "json" {
				err = report.WriteJSON(stdout, r)
			} else {
				err = report.WriteText(stdout, r)
			}
			if err != nil {
				return err
			}
			return exitStatus(r.Status, strict)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&archive, "archive", false, "store the report in the configured blob store")
	cmd.Flags().BoolVar(&strict, "strict", false, "treat an incomplete schematic as a failure")
	return cmd
}

func exitStatus(status domain.Status, strict bool) error {
	switch {
	case status == domain.StatusInvalid:
		return statusError{code: exitInvalid, status: status}
	case status == domain.StatusIncomplete && strict:
		return statusError{code: exitInvalid, status: status}
	}
	return nil
}

func readPayload(path string) (domain.SchematicPayload, error) {
	// #nosec G304 -- the schematic path is the command's argument
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.SchematicPayload{}, fmt.Errorf("read schematic: %w", err)
	}
	p, err := domain.DecodeSchematicPayload(jsonc.ToJSON(data))
	if err != nil {
		return domain.SchematicPayload{}, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
