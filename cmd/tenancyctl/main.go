package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/config"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/events"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/provisioning"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/storage"
	"github.com/zxstudio-llc/anahisoft-erp-sub005/internal/sweep"
)

const usage = `tenancyctl - tenant administration tool

Usage:
  tenancyctl [-config FILE] tenant create <id> <name> <email> [flags]
  tenancyctl [-config FILE] sweep

Tenant create flags:
  --plan string       plan slug (default "free")
  --trial-days int    trial length in days (default 14)
  --active            create with an active subscription (default true)
  --seed              seed demo catalog data
  --yes               skip the confirmation prompt
  --dry-run           validate against an in-memory copy, write nothing
`

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "config/tenancy-server.yml", "Configuration file path")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.NewPostgresStore(cfg.Database.DSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	schemas := storage.NewPostgresSchemaManager(store)

	switch args[0] {
	case "tenant":
		if len(args) < 2 || args[1] != "create" {
			flag.Usage()
			os.Exit(1)
		}
		if err := tenantCreate(ctx, cfg, store, schemas, args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	case "sweep":
		publisher, cleanup := sweepPublisher(cfg)
		err := runSweep(ctx, store, publisher)
		cleanup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	default:
		flag.Usage()
		os.Exit(1)
	}
}

func tenantCreate(ctx context.Context, cfg *config.Config, store storage.Store, schemas storage.SchemaManager, args []string) error {
	fs := flag.NewFlagSet("tenant create", flag.ExitOnError)
	plan := fs.String("plan", "free", "plan slug")
	trialDays := fs.Int("trial-days", 14, "trial length in days")
	active := fs.Bool("active", true, "create with an active subscription")
	seed := fs.Bool("seed", false, "seed demo catalog data")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	dryRun := fs.Bool("dry-run", false, "validate against an in-memory copy, write nothing")

	// Positional arguments come first: <id> <name> <email>
	var positional []string
	for len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		positional = append(positional, args[0])
		args = args[1:]
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(positional) != 3 {
		return fmt.Errorf("tenant create requires <id> <name> <email>")
	}

	id, name, email := positional[0], positional[1], positional[2]

	if *dryRun {
		// Run the whole workflow against an in-memory store seeded with
		// the real plan catalog; the database is only read.
		mem := storage.NewMemStore()
		plans, err := store.ListPlans(ctx)
		if err != nil {
			return err
		}
		for _, p := range plans {
			if err := mem.CreatePlan(ctx, p); err != nil {
				return err
			}
		}
		// Carry the existing row over so duplicate detection still works
		if existing, err := store.GetTenant(ctx, id); err == nil {
			if err := mem.CreateTenant(ctx, existing); err != nil {
				return err
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			return err
		}
		store, schemas = mem, mem
	}

	if !*yes && !*dryRun {
		fmt.Printf("Create tenant %q (%s, %s) on plan %q with schema %s? [y/N] ",
			id, name, email, *plan, storage.SchemaName(id))
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			return fmt.Errorf("aborted")
		}
	}

	provisioner := provisioning.NewProvisioner(store, schemas, cfg.Tenancy.BaseDomain)
	tenant, err := provisioner.Provision(ctx, provisioning.Request{
		ID:        id,
		Name:      name,
		Email:     email,
		PlanSlug:  *plan,
		TrialDays: *trialDays,
		Active:    *active,
		Seed:      *seed,
	})
	if err != nil {
		return err
	}

	if *dryRun {
		fmt.Printf("Dry run OK: tenant %s (%s.%s) would be created\n",
			tenant.ID, tenant.ID, cfg.Tenancy.BaseDomain)
		return nil
	}

	fmt.Printf("Created tenant %s (%s.%s)\n", tenant.ID, tenant.ID, cfg.Tenancy.BaseDomain)
	return nil
}

// sweepPublisher connects the configured event bus. Deactivation events
// are part of the sweep contract, so the console publishes them the same
// way the server scheduler does; without NATS they have nowhere to go.
func sweepPublisher(cfg *config.Config) (events.Publisher, func()) {
	if cfg.NATS.URL == "" {
		log.Warn().Msg("NATS not configured, deactivation events will not be published")
		return events.NopPublisher{}, func() {}
	}

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.Name("tenancyctl"),
		nats.UserInfo(cfg.NATS.Username, cfg.NATS.Password),
		nats.ReconnectWait(cfg.NATS.ReconnectInterval),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
	)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to connect to NATS, deactivation events will not be published")
		return events.NopPublisher{}, func() {}
	}

	return events.NewNATSPublisher(nc), func() {
		nc.Flush()
		nc.Close()
	}
}

func runSweep(ctx context.Context, store storage.Store, publisher events.Publisher) error {
	started := time.Now()
	sweeper := sweep.NewSweeper(store, publisher)

	report, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Sweep finished in %s: %d paid + %d trial rows checked, %d deactivated\n",
		time.Since(started).Round(time.Millisecond),
		report.PaidChecked, report.TrialChecked, len(report.Deactivated))
	for _, id := range report.Deactivated {
		fmt.Printf("  deactivated %s\n", id)
	}
	// Row failures are reported but do not fail the run; the exit code
	// only says whether the batch ran to completion.
	for _, f := range report.Failures {
		fmt.Fprintf(os.Stderr, "  failed %s: %v\n", f.TenantID, f.Err)
	}
	return nil
}
