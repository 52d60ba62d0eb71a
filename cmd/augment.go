package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/vehicle-scraper/internal/fetcher"
	"github.com/sells-group/vehicle-scraper/internal/model"
	"github.com/sells-group/vehicle-scraper/internal/store"
)

var (
	augmentCSV     string
	augmentFromDB  bool
	augmentLimit   int
	augmentVIN     string
	augmentModel   string
	augmentYear    int
	augmentSources string
)

var augmentCmd = &cobra.Command{
	Use:   "augment",
	Short: "Fill in detail fields for stored vehicles",
	Long: `Fetches per-VIN detail (drivetrain, color, estimated value, dealer, distance) from the
first preferred marketplace each vehicle is listed on and updates the vehicles table.
Vehicles come from a CSV file (--csv), from the database (--from-db), or from flags (--vin).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("augment"); err != nil {
			return err
		}

		st, pool, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		vehicles, err := loadAugmentVehicles(ctx, st)
		if err != nil {
			return err
		}
		zap.L().Info("loaded vehicles for augmentation", zap.Int("count", len(vehicles)))

		coord, err := newCoordinator(cfg, newFetcher(cfg), st)
		if err != nil {
			return err
		}

		diag, runErr := coord.RunAugmentation(ctx, vehicles)
		if err := printJSON(os.Stdout, diag); err != nil {
			zap.L().Warn("failed to print diagnostics", zap.Error(err))
		}
		if runErr != nil {
			return eris.Wrap(runErr, "augment")
		}
		return nil
	},
}

func init() {
	f := augmentCmd.Flags()
	f.StringVar(&augmentCSV, "csv", "", "CSV file with vin, model, year, active_sources columns")
	f.BoolVar(&augmentFromDB, "from-db", false, "augment stored vehicles listed on a preferred source")
	f.IntVar(&augmentLimit, "limit", 0, "max vehicles to load with --from-db (0 = all)")
	f.StringVar(&augmentVIN, "vin", "", "augment a single vehicle by VIN")
	f.StringVar(&augmentModel, "model", "", "model of the --vin vehicle")
	f.IntVar(&augmentYear, "year", 0, "year of the --vin vehicle")
	f.StringVar(&augmentSources, "sources", "", "comma-separated active sources of the --vin vehicle")
	augmentCmd.MarkFlagsMutuallyExclusive("csv", "from-db", "vin")
	augmentCmd.MarkFlagsOneRequired("csv", "from-db", "vin")
	rootCmd.AddCommand(augmentCmd)
}

func loadAugmentVehicles(ctx context.Context, st store.Store) ([]model.VehicleRef, error) {
	switch {
	case augmentCSV != "":
		f, err := os.Open(augmentCSV)
		if err != nil {
			return nil, eris.Wrapf(err, "open %s", augmentCSV)
		}
		defer f.Close() //nolint:errcheck
		return readVehicleCSV(ctx, f)

	case augmentFromDB:
		preference, err := model.ParseSources(cfg.Augment.Sources)
		if err != nil {
			return nil, eris.Wrap(err, "parse augment.sources")
		}
		return st.ActiveVehicles(ctx, store.VehicleFilter{Sources: preference, Limit: augmentLimit})

	default:
		return []model.VehicleRef{{
			VIN:           strings.ToUpper(strings.TrimSpace(augmentVIN)),
			Model:         augmentModel,
			Year:          augmentYear,
			ActiveSources: parseSourceList(augmentSources),
		}}, nil
	}
}

// readVehicleCSV reads augmentation targets from a headed CSV. Rows without a
// vin are dropped.
func readVehicleCSV(ctx context.Context, r io.Reader) ([]model.VehicleRef, error) {
	records, errCh := fetcher.StreamCSV(ctx, r, fetcher.CSVOptions{})

	var out []model.VehicleRef
	for rec := range records {
		vin := strings.ToUpper(rec["vin"])
		if vin == "" {
			zap.L().Warn("skipping csv row without vin", zap.Any("row", rec))
			continue
		}
		out = append(out, model.VehicleRef{
			VIN:           vin,
			Make:          rec["make"],
			Model:         rec["model"],
			Year:          parseYear(rec["year"]),
			ActiveSources: parseSourceList(rec["active_sources"]),
		})
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "read vehicle csv")
	}
	return out, nil
}

// parseSourceList accepts "autolist,edmunds", "autolist|edmunds", or a
// bracketed list such as "['autolist', 'edmunds']". Names that are not known
// marketplaces are kept as-is so the resolver can report them.
func parseSourceList(s string) []model.Source {
	s = strings.Trim(strings.TrimSpace(s), "[]{}")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == '|' || r == ';' || r == ' '
	})
	var out []model.Source
	for _, f := range fields {
		f = strings.Trim(f, `'"`)
		if f == "" {
			continue
		}
		src, err := model.ParseSource(f)
		if err != nil {
			src = model.Source(strings.ToLower(f))
		}
		out = append(out, src)
	}
	return out
}

// parseYear tolerates float-formatted years ("2017.0") from spreadsheet
// exports. Unparseable values yield 0.
func parseYear(s string) int {
	if s == "" {
		return 0
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f)
	}
	return 0
}
