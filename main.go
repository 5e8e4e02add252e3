package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"trainlog/internal/analysis"
	"trainlog/internal/buffer"
	"trainlog/internal/config"
	"trainlog/internal/export"
	"trainlog/internal/metrics"
	"trainlog/internal/plan"
	"trainlog/internal/recorder"
	"trainlog/internal/sensor"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	planPath := flag.String("plan", "", "plan file to ride against (.yaml or .zwo)")
	duration := flag.Duration("duration", 20*time.Minute, "simulated ride duration")
	power := flag.Int("power", 0, "simulated target power in watts (default: 90% of FTP)")
	grade := flag.Float64("grade", 0, "simulated constant grade in percent")
	fitOut := flag.String("fit", "", "write the finished session to this FIT file")
	recoverID := flag.String("recover", "", "recover this orphaned session and exit (or 'discard:<id>')")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Load configuration
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nEdit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("Set your FTP and threshold heart rate, then run again.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Validate config
	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		fmt.Printf("Config validation failed: %v\n\n", err)
		fmt.Printf("Please edit the config file at:\n  %s/config.json\n", configDir)
		return nil
	}

	// Open the sample store
	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	store, err := buffer.Open(dataDir)
	if err != nil {
		return fmt.Errorf("opening sample store: %w", err)
	}
	defer store.Close()

	svc := recorder.New(store, recorder.Config{
		FTP:              cfg.Athlete.FTP,
		ThresholdHR:      cfg.Athlete.ThresholdHR,
		NPWindow:         cfg.Recorder.NPWindowSeconds,
		AscentEpsilon:    cfg.Recorder.AscentEpsilon,
		Tolerance:        cfg.Recorder.TolerancePercent / 100,
		SnapshotInterval: time.Duration(cfg.Recorder.SnapshotSeconds) * time.Second,
	}, logger)

	// Startup reconciliation: orphaned sessions block new recordings
	// until recovered or discarded.
	if done, err := reconcileOrphans(svc, *recoverID, cfg, *fitOut); done || err != nil {
		return err
	}

	// Attach a plan if requested
	if *planPath != "" {
		p, err := plan.Load(*planPath)
		if err != nil {
			return fmt.Errorf("loading plan: %w", err)
		}
		if err := svc.SelectPlan(p); err != nil {
			return err
		}
		printPlanEstimate(p, cfg.Athlete.FTP)
	}

	targetPower := *power
	if targetPower == 0 {
		targetPower = cfg.Athlete.FTP * 90 / 100
	}

	id, err := svc.Start()
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	fmt.Printf("Recording session %s (%v at ~%dW, grade %.1f%%)\n", id, *duration, targetPower, *grade)

	trainer := sensor.NewTrainer(sensor.TrainerConfig{
		RiderWeight: cfg.Athlete.Weight,
		TargetPower: targetPower,
		RestingHR:   cfg.Athlete.RestingHR,
		MaxHR:       cfg.Athlete.MaxHR,
		Grade:       *grade,
		Duration:    *duration,
	})
	if err := trainer.Run(context.Background(), func(s buffer.Sample) {
		if err := svc.OnSensorSample(s); err != nil {
			logger.Warn("sample not persisted", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("running simulated ride: %w", err)
	}

	snap := svc.Snapshot()
	handle, err := svc.Stop()
	if err != nil {
		return fmt.Errorf("stopping session: %w", err)
	}

	printSummary(snap, cfg.Athlete.FTP)
	printFitness(store, cfg)

	if *fitOut != "" {
		if err := export.WriteFIT(*fitOut, handle, snap.Metrics); err != nil {
			return fmt.Errorf("exporting fit: %w", err)
		}
		fmt.Printf("\nWrote %s\n", *fitOut)
	}
	return nil
}

// reconcileOrphans lists crashed sessions and either resolves the one
// named by -recover or tells the user what it found. Returns done=true
// when the invocation was only about recovery.
func reconcileOrphans(svc *recorder.Service, recoverArg string, cfg *config.Config, fitOut string) (bool, error) {
	orphans, err := svc.ListOrphaned()
	if err != nil {
		return false, fmt.Errorf("listing orphaned sessions: %w", err)
	}

	if recoverArg != "" {
		if id, ok := strings.CutPrefix(recoverArg, "discard:"); ok {
			if err := svc.DiscardOrphan(id); err != nil {
				return true, err
			}
			fmt.Printf("Discarded session %s\n", id)
			return true, nil
		}
		handle, err := svc.RecoverOrphan(recoverArg)
		if err != nil {
			return true, err
		}
		fmt.Printf("Recovered session %s (%d samples)\n", handle.SessionID, handle.SampleCount)
		if fitOut != "" {
			samples, err := handle.Samples()
			if err != nil {
				return true, err
			}
			snap := replay(samples, cfg)
			if err := export.WriteFIT(fitOut, handle, snap); err != nil {
				return true, fmt.Errorf("exporting fit: %w", err)
			}
			fmt.Printf("Wrote %s\n", fitOut)
		}
		return true, nil
	}

	if len(orphans) > 0 {
		fmt.Printf("Found %d unfinalized session(s) from a previous run:\n", len(orphans))
		for _, o := range orphans {
			fmt.Printf("  %s  started %s  %d samples\n", o.ID, o.StartedAt.Format(time.RFC3339), o.SampleCount)
		}
		fmt.Println("\nResolve them with -recover <id> or -recover discard:<id> before recording.")
		return true, nil
	}
	return false, nil
}

func printPlanEstimate(p *plan.Plan, ftp int) {
	flat := plan.Flatten(p.Nodes)
	est := plan.EstimateTimeline(flat, ftp, 0)
	fmt.Printf("Plan: %s (%d steps, est. %v", p.Name, len(flat), est.Duration.Round(time.Minute))
	if est.TSS > 0 {
		fmt.Printf(", %.0f TSS, IF %.2f", est.TSS, est.IF)
	}
	if est.Incomplete {
		fmt.Print(", estimate incomplete")
	}
	fmt.Println(")")
}

func printSummary(snap recorder.Snapshot, ftp int) {
	m := snap.Metrics
	np := m.NormalizedPower
	intensity := analysis.IntensityFactor(np, ftp)
	tss := analysis.TSS(m.Active.Seconds(), np, ftp)

	fmt.Println("\nSession summary")
	fmt.Printf("  Elapsed      %v\n", m.Elapsed.Round(time.Second))
	fmt.Printf("  Moving       %v\n", m.Moving.Round(time.Second))
	fmt.Printf("  Distance     %.2f km\n", m.Distance/1000)
	if m.Ascent > 0 {
		fmt.Printf("  Ascent       %.0f m (VAM %.0f m/h)\n", m.Ascent, analysis.VAM(m.Ascent, m.Moving))
	}
	if m.Power.Count > 0 {
		fmt.Printf("  Power        avg %.0f W  max %.0f W\n", m.Power.Avg, m.Power.Max)
		if np > 0 {
			fmt.Printf("  NP           %.0f W  (VI %.2f)\n", np, analysis.VariabilityIndex(np, m.Power.Avg))
		}
		if intensity > 0 {
			fmt.Printf("  IF / TSS     %.2f / %.0f\n", intensity, tss)
		}
	}
	if m.HeartRate.Count > 0 {
		fmt.Printf("  Heart rate   avg %.0f bpm  max %.0f bpm\n", m.HeartRate.Avg, m.HeartRate.Max)
		if ef := analysis.EfficiencyFactor(np, m.Power.Avg, m.HeartRate.Avg); ef > 0 {
			fmt.Printf("  EF           %.2f\n", ef)
		}
	}
	if snap.Adherence != nil {
		fmt.Printf("  Plan         %s  (%s, score %.0f%%)\n", snap.PlanName, snap.Adherence.State, snap.Adherence.Score*100)
	}
	if snap.BufferDegraded {
		fmt.Println("  WARNING: buffer writes failed, session kept in memory only")
	}
}

// printFitness rebuilds the daily TSS history from every sealed
// session in the store and reports where the ride leaves the training
// load.
func printFitness(store *buffer.Store, cfg *config.Config) {
	infos, err := store.ListFinalized()
	if err != nil || len(infos) == 0 {
		return
	}

	var loads []analysis.DailyLoad
	for _, info := range infos {
		samples, err := store.ReadAll(info.ID)
		if err != nil {
			continue
		}
		m := replay(samples, cfg)
		if tss := analysis.TSS(m.Active.Seconds(), m.NormalizedPower, cfg.Athlete.FTP); tss > 0 {
			loads = append(loads, analysis.DailyLoad{Date: info.StartedAt, TSS: tss})
		}
	}
	if len(loads) == 0 {
		return
	}

	current := analysis.CurrentFitness(loads)
	fmt.Printf("\nTraining load (%d sessions)\n", len(loads))
	fmt.Printf("  Fitness      CTL %.0f  ATL %.0f  TSB %+.1f\n", current.CTL, current.ATL, current.TSB)
	fmt.Printf("  Form         %s\n", analysis.FormDescription(current.TSB))
}

// replay rebuilds session totals from persisted samples, for sessions
// recovered after a crash.
func replay(samples []buffer.Sample, cfg *config.Config) metrics.Snapshot {
	agg := metrics.New(metrics.Config{
		FTP:           cfg.Athlete.FTP,
		ThresholdHR:   cfg.Athlete.ThresholdHR,
		NPWindow:      cfg.Recorder.NPWindowSeconds,
		AscentEpsilon: cfg.Recorder.AscentEpsilon,
	})
	for _, s := range samples {
		agg.Ingest(s)
	}
	return agg.Snapshot()
}
