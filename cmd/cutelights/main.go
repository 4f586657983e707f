package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/cutelights/internal/app"
	"github.com/dokzlo13/cutelights/internal/config"
	"github.com/dokzlo13/cutelights/internal/hue"
	"github.com/dokzlo13/cutelights/internal/light"
)

const usage = `Usage: cutelights [-c config.yaml] <command> [args]

Commands:
  discover [--json]                list every reachable light
  set <id> on|off                  switch a light
  set <id> brightness <0-100>      set brightness
  set <id> color <r> <g> <b>       set color
  bridge                           show Hue bridge information
  run <script.lua>                 run a Lua script
`

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file (default: "+config.DefaultPath()+")")
	flag.StringVar(&configPath, "c", "", "Path to configuration file (shorthand)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := loadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logging
	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	application := app.New(cfg)
	err = dispatch(ctx, application, os.Stdout, flag.Args())
	if cerr := application.Close(); cerr != nil {
		log.Warn().Err(cerr).Msg("Error releasing lights")
	}

	if err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadDefault()
	}
	return config.Load(path)
}

func dispatch(ctx context.Context, a *app.App, out io.Writer, args []string) error {
	switch cmd, rest := args[0], args[1:]; cmd {
	case "discover":
		return runDiscover(ctx, a, out, rest)
	case "set":
		return runSet(ctx, a, rest)
	case "bridge":
		return runBridge(ctx, a.Config(), out)
	case "run":
		if len(rest) != 1 {
			return fmt.Errorf("run: expected a script path")
		}
		return a.RunScript(ctx, rest[0])
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func runDiscover(ctx context.Context, a *app.App, out io.Writer, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print lights as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a.Discover(ctx)

	lights := a.Registry().All()
	snapshots := make([]light.Snapshot, 0, len(lights))
	for _, l := range lights {
		snapshots = append(snapshots, light.TakeSnapshot(l))
	}

	if *asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshots)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tID\tADDRESS\tCOLOR\tON\tRGB\tBRIGHTNESS")
	for _, s := range snapshots {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%d,%d,%d\t%d\n",
			s.Name, s.ID, s.Address, s.SupportsColor, s.On, s.Red, s.Green, s.Blue, s.Brightness)
	}
	return w.Flush()
}

func runSet(ctx context.Context, a *app.App, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("set: expected <id> <on|off|brightness|color> [values]")
	}

	l, err := a.Light(ctx, args[0])
	if err != nil {
		return err
	}

	nums, err := parseBytes(args[2:])
	if err != nil {
		return fmt.Errorf("set: %w", err)
	}

	switch verb := strings.ToLower(args[1]); {
	case verb == "on" && len(nums) == 0:
		err = l.SetOn(ctx, true)
	case verb == "off" && len(nums) == 0:
		err = l.SetOn(ctx, false)
	case verb == "brightness" && len(nums) == 1:
		err = l.SetBrightness(ctx, nums[0])
	case verb == "color" && len(nums) == 3:
		err = l.SetColor(ctx, nums[0], nums[1], nums[2])
	default:
		return fmt.Errorf("set: bad arguments %q", strings.Join(args[1:], " "))
	}
	if err != nil {
		return err
	}

	log.Info().Str("id", l.ID()).Str("light", light.Describe(l)).Msg("Light updated")
	return nil
}

func parseBytes(args []string) ([]uint8, error) {
	out := make([]uint8, 0, len(args))
	for _, s := range args {
		v, err := strconv.ParseUint(s, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", s)
		}
		out = append(out, uint8(v))
	}
	return out, nil
}

func runBridge(ctx context.Context, cfg *config.Config, out io.Writer) error {
	info, err := hue.GetBridgeInfo(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Name:        %s\n", info.Name)
	fmt.Fprintf(out, "Bridge ID:   %s\n", info.BridgeID)
	fmt.Fprintf(out, "Model:       %s\n", info.ModelID)
	fmt.Fprintf(out, "API version: %s\n", info.APIVersion)
	fmt.Fprintf(out, "SW version:  %s\n", info.SwVersion)
	fmt.Fprintf(out, "Address:     %s\n", info.Address)
	return nil
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
