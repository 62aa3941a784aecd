package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"seirsim.dev/internal/persistence/indexdb"
	persistlog "seirsim.dev/internal/persistence/log"
	"seirsim.dev/internal/sim/epidemic"
	"seirsim.dev/internal/sim/randsrc"
	"seirsim.dev/internal/sim/tuning"
	"seirsim.dev/internal/transport/ws"
)

const hubDrainTimeout = 2 * time.Second

type runOptions struct {
	Seed         int64
	ScenarioPath string
	EventsDir    string
	IndexPath    string
	ObserveAddr  string
	DayDelay     time.Duration
}

func main() {
	logger := log.New(os.Stderr, "[sim] ", log.LstdFlags|log.Lmicroseconds)

	cfg, opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		logger.Fatalf("%v", err)
	}
	res, err := run(cfg, opts, os.Stdout, logger)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	fmt.Println(res.Summary())
	fmt.Println(formatCurve(res.Curve))
}

// parseFlags layers defaults, the optional scenario file and explicitly set
// flags, in that order.
func parseFlags(fs *flag.FlagSet, args []string) (epidemic.Config, runOptions, error) {
	def := epidemic.Defaults()
	var (
		n         = fs.Int("N", def.Population, "population size")
		initial   = fs.Int("I", def.Initial, "initial infections")
		m         = fs.Int("m", def.MaxContacts, "max daily contacts per infectious agent")
		vp        = fs.Float64("vp", def.VaccinationProb, "vaccination probability")
		tpe       = fs.Float64("tpe", def.Transmission.Exposed, "transmission probability from exposed agents")
		tpi       = fs.Float64("tpi", def.Transmission.Infected, "transmission probability from infected agents")
		de        = fs.Int("de", def.ExposedDays, "exposed period (days)")
		di        = fs.Int("di", def.InfectedDays, "infected period (days)")
		rp        = fs.Float64("rp", def.RecoveryProb, "recovery probability at end of infected period")
		maxRounds = fs.Int("max", def.MaxRounds, "failsafe day cap")
		verbose   = fs.Bool("verbose", def.Verbose, "print per-day and per-infection progress")

		seed     = fs.Int64("seed", 0, "random seed (0 picks a fresh one)")
		scenario = fs.String("scenario", "", "path to scenario yaml (optional)")
		events   = fs.String("events", "", "directory for the compressed day log (optional)")
		index    = fs.String("index", "", "sqlite run index path (default: <events>/index/runs.sqlite)")
		noDB     = fs.Bool("disable_db", false, "disable the sqlite run index")
		observe  = fs.String("observe", "", "listen address for the websocket curve stream (optional)")
		dayMs    = fs.Int("day_ms", 0, "delay per simulated day in milliseconds")
	)
	if err := fs.Parse(args); err != nil {
		return def, runOptions{}, err
	}

	cfg := def
	opts := runOptions{
		ScenarioPath: strings.TrimSpace(*scenario),
		EventsDir:    strings.TrimSpace(*events),
		ObserveAddr:  strings.TrimSpace(*observe),
		DayDelay:     time.Duration(*dayMs) * time.Millisecond,
	}
	opts.IndexPath = indexPath(strings.TrimSpace(*index), opts.EventsDir, *noDB)
	if opts.ScenarioPath != "" {
		tu, err := tuning.Load(opts.ScenarioPath)
		if err != nil {
			return cfg, opts, fmt.Errorf("load scenario: %w", err)
		}
		tu.Apply(&cfg)
		if tu.Seed != nil {
			opts.Seed = *tu.Seed
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "N":
			cfg.Population = *n
		case "I":
			cfg.Initial = *initial
		case "m":
			cfg.MaxContacts = *m
		case "vp":
			cfg.VaccinationProb = *vp
		case "tpe":
			cfg.Transmission.Exposed = *tpe
		case "tpi":
			cfg.Transmission.Infected = *tpi
		case "de":
			cfg.ExposedDays = *de
		case "di":
			cfg.InfectedDays = *di
		case "rp":
			cfg.RecoveryProb = *rp
		case "max":
			cfg.MaxRounds = *maxRounds
		case "verbose":
			cfg.Verbose = *verbose
		case "seed":
			opts.Seed = *seed
		}
	})
	return cfg, opts, cfg.Validate()
}

type pacer struct {
	epidemic.NopObserver
	delay time.Duration
}

func (p pacer) DayEnded(epidemic.DayReport) { time.Sleep(p.delay) }

func run(cfg epidemic.Config, opts runOptions, out io.Writer, logger *log.Logger) (epidemic.Result, error) {
	if opts.Seed == 0 {
		seed, err := randsrc.NewSeed()
		if err != nil {
			return epidemic.Result{}, err
		}
		opts.Seed = seed
	}
	logger.Printf("seed=%d N=%d I=%d m=%d vp=%v tp=(%v,%v) de=%d di=%d rp=%v max=%d",
		opts.Seed, cfg.Population, cfg.Initial, cfg.MaxContacts, cfg.VaccinationProb,
		cfg.Transmission.Exposed, cfg.Transmission.Infected, cfg.ExposedDays, cfg.InfectedDays,
		cfg.RecoveryProb, cfg.MaxRounds)

	var obs epidemic.MultiObserver
	if cfg.Verbose {
		obs = append(obs, epidemic.TextObserver{W: out})
	}

	if opts.EventsDir != "" {
		dl := persistlog.NewDayLogger(opts.EventsDir)
		defer func() {
			if err := dl.Close(); err != nil {
				logger.Printf("day log: %v", err)
			}
		}()
		if err := dl.WriteHeader(opts.Seed, cfg); err != nil {
			return epidemic.Result{}, fmt.Errorf("day log: %w", err)
		}
		obs = append(obs, dl)
	}

	if opts.IndexPath != "" {
		idx, err := indexdb.OpenSQLite(opts.IndexPath)
		if err != nil {
			return epidemic.Result{}, fmt.Errorf("open index: %w", err)
		}
		defer func() {
			if err := idx.Close(); err != nil {
				logger.Printf("index: %v", err)
			}
			if n := idx.Dropped(); n > 0 {
				logger.Printf("index: dropped %d writes", n)
			}
		}()
		idx.BeginRun(opts.Seed, cfg)
		obs = append(obs, idx)
	}

	if opts.ObserveAddr != "" {
		hub := ws.NewHub(logger)
		stop, err := serveHub(opts.ObserveAddr, hub, logger)
		if err != nil {
			return epidemic.Result{}, err
		}
		defer func() {
			hub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), hubDrainTimeout)
			defer cancel()
			if err := hub.Wait(ctx); err != nil {
				logger.Printf("observe: subscribers did not drain: %v", err)
			}
			stop()
		}()
		obs = append(obs, hub)
	}
	if opts.DayDelay > 0 {
		obs = append(obs, pacer{delay: opts.DayDelay})
	}

	s, err := epidemic.New(cfg, randsrc.NewPCG(opts.Seed), obs)
	if err != nil {
		return epidemic.Result{}, err
	}
	return s.Run(), nil
}

func serveHub(addr string, hub *ws.Hub, logger *log.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("observe listen: %w", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/curve", hub.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("observe serve: %v", err)
		}
	}()
	logger.Printf("streaming curve on ws://%s/v1/curve", ln.Addr())
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

// indexPath resolves where the run index lives; the index follows the day
// log unless a path is given or it is disabled.
func indexPath(explicit, eventsDir string, disabled bool) string {
	switch {
	case disabled:
		return ""
	case explicit != "":
		return explicit
	case eventsDir != "":
		return filepath.Join(eventsDir, "index", "runs.sqlite")
	default:
		return ""
	}
}

func formatCurve(curve []int) string {
	parts := make([]string, len(curve))
	for i, v := range curve {
		parts[i] = strconv.Itoa(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
