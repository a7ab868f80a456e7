package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"NetWarden/internal/api"
	"NetWarden/internal/config"
	"NetWarden/internal/engine"
	"NetWarden/internal/export"
	"NetWarden/internal/report"
	"NetWarden/internal/rules"
)

var (
	flagConfig  string
	flagRules   string
	flagJSON    string
	flagLBs     int
	flagFPs     int
	flagQuiet   bool
	flagBlockIP []string
	flagApps    []string
	flagDomains []string
)

func main() {
	root := &cobra.Command{
		Use:   "nw-engine <input.pcap> <output.pcap>",
		Short: "DPI engine: classify flows by payload inspection and filter a capture",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], args[1])
		},
		SilenceUsage: true,
	}

	root.Flags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.Flags().StringVar(&flagRules, "rules", "", "rules file to load at startup")
	root.Flags().StringVar(&flagJSON, "json", "", "write JSON statistics to this path")
	root.Flags().IntVar(&flagLBs, "lbs", 0, "number of load balancer threads (default 2)")
	root.Flags().IntVar(&flagFPs, "fps", 0, "fast paths per load balancer (default 2)")
	root.Flags().BoolVar(&flagQuiet, "quiet", false, "suppress per-packet and lifecycle logs")
	root.Flags().StringArrayVar(&flagBlockIP, "block-ip", nil, "block a source IP (repeatable)")
	root.Flags().StringArrayVar(&flagApps, "block-app", nil, "block an application by name (repeatable)")
	root.Flags().StringArrayVar(&flagDomains, "block-domain", nil, "block a domain (repeatable)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(input, output string) error {
	cfg := config.Default()
	if flagConfig != "" {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flagLBs > 0 {
		cfg.Engine.NumLBs = flagLBs
	}
	if flagFPs > 0 {
		cfg.Engine.FPsPerLB = flagFPs
	}

	cleanupTimeout, err := cfg.CleanupTimeout()
	if err != nil {
		return err
	}

	rm := rules.NewManager()
	rm.SetStrictDomainMatching(cfg.Engine.StrictDomains)

	rulesFile := cfg.Rules.File
	if flagRules != "" {
		rulesFile = flagRules
	}
	if rulesFile != "" {
		if err := rm.Load(rulesFile); err != nil {
			return err
		}
	}

	for _, ip := range flagBlockIP {
		if err := rm.BlockIPString(ip); err != nil {
			return err
		}
	}
	for _, app := range flagApps {
		if err := rm.BlockAppName(app); err != nil {
			return err
		}
	}
	for _, domain := range flagDomains {
		rm.BlockDomain(domain)
	}

	eng := engine.New(engine.Config{
		NumLBs:         cfg.Engine.NumLBs,
		FPsPerLB:       cfg.Engine.FPsPerLB,
		QueueSize:      cfg.Engine.QueueSize,
		MaxConnsPerFP:  cfg.Engine.MaxConnsPerFP,
		CleanupTimeout: cleanupTimeout,
		Quiet:          flagQuiet,
	}, rm)

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.New(cfg.API.ListenAddr, rm, eng.Report)
		apiServer.Start()
	}

	if err := eng.ProcessFile(input, output); err != nil {
		return err
	}

	if apiServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		apiServer.Shutdown(ctx)
		cancel()
	}

	if !flagQuiet {
		report.Print(eng)
	}

	if flagJSON != "" {
		if err := eng.Report().WriteJSON(flagJSON); err != nil {
			return err
		}
	}

	if err := runExports(cfg, eng); err != nil {
		// Export sinks are best-effort; the filtered capture is already
		// on disk.
		log.Printf("[export] %v", err)
	}

	fmt.Printf("Output written to: %s\n", output)
	return nil
}

func runExports(cfg *config.Config, eng *engine.Engine) error {
	if !cfg.Export.NATS.Enabled && !cfg.Export.ClickHouse.Enabled {
		return nil
	}

	conns := eng.Connections()

	if cfg.Export.NATS.Enabled {
		pub, err := export.NewPublisher(cfg.Export.NATS)
		if err != nil {
			return err
		}
		defer pub.Close()
		for _, conn := range conns {
			if err := pub.PublishFlow(eng.RunID(), conn); err != nil {
				return fmt.Errorf("publish flow: %w", err)
			}
		}
	}

	if cfg.Export.ClickHouse.Enabled {
		writer, err := export.NewClickHouseWriter(cfg.Export.ClickHouse)
		if err != nil {
			return err
		}
		defer writer.Close()
		if err := writer.WriteSnapshot(eng.RunID(), conns); err != nil {
			return err
		}
	}
	return nil
}
