// Package cmd provides the retrohunt command-line interface.
package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"retrohunt/config"
	"retrohunt/core"
	"retrohunt/detect"
	"retrohunt/ingest"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

var severityColors = map[string]*color.Color{
	core.SeverityCritical: color.New(color.FgRed, color.Bold),
	core.SeverityHigh:     color.New(color.FgRed),
	core.SeverityMedium:   color.New(color.FgYellow),
	core.SeverityLow:      color.New(color.FgCyan),
}

// Global flags
var (
	configFile   string
	outputFormat string
	verbose      bool
	noColor      bool
	showAlerts   int
)

var rootCmd = &cobra.Command{
	Use:   "retrohunt",
	Short: "Retrospective detection engine for endpoint telemetry",
	Long: `retrohunt analyzes historical endpoint and network telemetry for
behavioral indicators of advanced intrusions: long-dwell implants, covert
beaconing, weekend exfiltration, distributed reconnaissance, anomalous
service-account use, and multi-host attack chains.`,
	SilenceUsage: true,
}

var huntCmd = &cobra.Command{
	Use:   "hunt <telemetry.csv>",
	Short: "Run all detectors over a telemetry export and print ranked alerts",
	Args:  cobra.ExactArgs(1),
	RunE:  runHunt,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	huntCmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json, or yaml")
	huntCmd.Flags().IntVar(&showAlerts, "show", 10, "alerts to print per detector in text output")

	rootCmd.AddCommand(huntCmd)
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func runHunt(cmd *cobra.Command, args []string) error {
	if noColor {
		color.NoColor = true
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	cfg, err := config.Load(configFile)
	if err != nil {
		errorColor.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return err
	}

	var spin *spinner.Spinner
	if outputFormat == "text" && !noColor {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = " loading telemetry..."
		spin.Start()
	}
	stopSpinner := func() {
		if spin != nil {
			spin.Stop()
			spin = nil
		}
	}
	defer stopSpinner()

	rows, err := ingest.ReadCSVFile(args[0])
	if err != nil {
		stopSpinner()
		errorColor.Fprintf(os.Stderr, "failed to load telemetry: %v\n", err)
		return err
	}

	corpus := ingest.NewNormalizer(logger).Normalize(rows)

	if spin != nil {
		spin.Suffix = fmt.Sprintf(" hunting across %d events...", len(corpus))
	}

	start := time.Now()
	results := detect.NewEngine(cfg, logger).Run(corpus)
	elapsed := time.Since(start)
	stopSpinner()

	switch outputFormat {
	case "json":
		return printJSON(results)
	case "yaml":
		return printYAML(results)
	case "text":
		printText(results, len(corpus), elapsed)
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text, json, or yaml)", outputFormat)
	}
}

func printJSON(results detect.Results) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func printYAML(results detect.Results) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(results)
}

func printText(results detect.Results, eventCount int, elapsed time.Duration) {
	headerColor.Println("===== RESULTS =====")
	fmt.Printf("%d events analyzed in %.2fs\n\n", eventCount, elapsed.Seconds())

	for _, name := range detectorOrder(results) {
		alerts := results[name]
		if len(alerts) == 0 {
			fmt.Printf("%s: 0 alerts\n", name)
			continue
		}
		warningColor.Printf("%s: %d alerts\n", name, len(alerts))
		for i, a := range alerts {
			if i >= showAlerts {
				infoColor.Printf("  ... %d more\n", len(alerts)-showAlerts)
				break
			}
			printAlert(a)
		}
	}

	fmt.Println()
	if total := results.Total(); total > 0 {
		errorColor.Printf("Total alerts: %d\n", total)
	} else {
		successColor.Println("Total alerts: 0")
	}
}

func printAlert(a *core.Alert) {
	sev := severityColors[a.Severity]
	if sev == nil {
		sev = infoColor
	}
	fmt.Printf("  [%s] %s", sev.Sprint(a.Severity), a.AlertName)

	var where []string
	if a.Hostname != "" {
		where = append(where, a.Hostname)
	}
	if a.ProcessName != "" {
		where = append(where, a.ProcessName)
	}
	if a.User != "" {
		where = append(where, a.User)
	}
	if a.Destination != "" {
		where = append(where, "→ "+a.Destination)
	}
	if len(where) > 0 {
		fmt.Printf("  (%s)", strings.Join(where, " "))
	}
	if a.AttackPath != "" {
		fmt.Printf("  path: %s", a.AttackPath)
	}
	if a.Timeline != "" {
		fmt.Printf("  — %s", a.Timeline)
	}
	fmt.Println()
}

// detectorOrder returns detector names in a stable display order.
func detectorOrder(results detect.Results) []string {
	preferred := []string{"dormancy", "beaconing", "exfiltration", "recon", "service_account", "attack_chain"}
	var names []string
	seen := make(map[string]struct{})
	for _, n := range preferred {
		if _, ok := results[n]; ok {
			names = append(names, n)
			seen[n] = struct{}{}
		}
	}
	for n := range results {
		if _, ok := seen[n]; !ok {
			names = append(names, n)
		}
	}
	return names
}
