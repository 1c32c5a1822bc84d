package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"certline/internal/config"
	"certline/internal/db"
	"certline/internal/migrate"
	"certline/internal/repo"
	"certline/internal/server"
	"certline/pkg/certify"
	"certline/pkg/conformance"
	"certline/pkg/dashboard"
	"certline/pkg/governance"
	"certline/pkg/history"
	"certline/pkg/lifecycle"
	"certline/pkg/mockagent"
	"certline/pkg/report"
)

var rootCmd = &cobra.Command{
	Use:   "certline",
	Short: "Certline CLI",
	Long: `Certline runs agent-governance conformance checks and manages the
resulting self-assessed certifications.
- run: execute protocol check suites against an implementation adapter
  and score the result against the Bronze/Silver/Gold/Platinum criteria.
- report / badge: export the latest assessment as Markdown, JSON, or
  HTML, and render the level badge as SVG.
- lifecycle: issue, renew, suspend, reinstate, revoke, and expire
  certification records (stored in the workspace database).
- fleet: track certification status across an agent fleet and produce
  dashboard summaries.
- score: compute a governance maturity score from a deployment profile.
All certifications are self-assessed; no independent verification is
implied.`,
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("CERTLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(badgeCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(lifecycleCmd())
	rootCmd.AddCommand(fleetCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(serveCmd())
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// --- init ---

func initCmd() *cobra.Command {
	var org string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default certline.yml into the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(org)), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&org, "org", "Unnamed Organisation", "organisation name")
	return cmd
}

// --- run ---

func selectAdapter(name string) (conformance.Adapter, error) {
	switch name {
	case "mock":
		return mockagent.New(), nil
	default:
		return nil, fmt.Errorf("unknown implementation %q: only the built-in 'mock' adapter is available from the CLI; other implementations use the conformance library directly", name)
	}
}

// protocolsForLevel filters a level's required protocols down to the
// runnable suites, dropping the reserved asp and alcp identifiers.
func protocolsForLevel(level string) ([]string, error) {
	def, ok := certify.Definition(certify.Level(level))
	if !ok {
		return nil, fmt.Errorf("unknown certification level %q", level)
	}
	registered := make(map[string]bool)
	for _, p := range conformance.RegisteredProtocols() {
		registered[p] = true
	}
	var out []string
	for _, p := range def.RequiredProtocols {
		if registered[p] {
			out = append(out, p)
		}
	}
	return out, nil
}

func runCmd() *cobra.Command {
	var protocols []string
	var level, implementation string
	var skipHistory bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run conformance checks and score the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(protocols) > 0 && level != "" {
				return fmt.Errorf("--protocols and --level are mutually exclusive")
			}
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			adapter, err := selectAdapter(implementation)
			if err != nil {
				return err
			}
			requested := protocols
			if level != "" {
				if requested, err = protocolsForLevel(level); err != nil {
					return err
				}
			}

			logger := newLogger()
			logger.Info().Str("implementation", adapter.ImplementationName()).Strs("protocols", requested).Msg("starting conformance run")

			run, err := conformance.NewRunner(adapter).Run(cmd.Context(), requested)
			if err != nil {
				return err
			}
			// The configured name labels the system under assessment in
			// reports and history; the adapter's self-reported name is
			// only a fallback.
			if name := cfg.Implementation.Name; name != "" && name != config.DefaultImplementationName {
				run.ImplementationName = name
			}
			result := (certify.Scorer{}).Score(run)
			logger.Info().Float64("score_pct", result.ScorePct).Msg("conformance run complete")

			if !skipHistory {
				store := history.NewStore(filepath.Join(workspace, cfg.History.Path))
				if _, err := store.Append(result); err != nil {
					return fmt.Errorf("record history: %w", err)
				}
			}

			if viper.GetBool("json") {
				if err := printJSON(result); err != nil {
					return err
				}
			} else {
				printRunSummary(result)
			}
			if result.AchievedLevel == nil {
				return fmt.Errorf("no certification level achieved (score %.1f%%, missing protocols: %s)",
					result.ScorePct, strings.Join(result.MissingProtocols, ", "))
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVarP(&protocols, "protocols", "p", nil, "protocol ids to run (default: all registered)")
	cmd.Flags().StringVarP(&level, "level", "l", "", "run only the suites a target level requires")
	cmd.Flags().StringVar(&implementation, "implementation", "mock", "implementation adapter")
	cmd.Flags().BoolVar(&skipHistory, "no-history", false, "do not append the result to the history file")
	return cmd
}

func printRunSummary(result certify.Result) {
	run := result.RunResult
	fmt.Printf("Implementation: %s\n", run.ImplementationName)
	fmt.Printf("Run: %s\n", run.RunID)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Protocol", "Passed", "Failed", "Skipped", "Errors", "Score"})
	for _, p := range run.ProtocolsRun {
		pr := run.ProtocolResults[p]
		tw.AppendRow(table.Row{strings.ToUpper(p), pr.Passed, pr.Failed, pr.Skipped, pr.Errors, fmt.Sprintf("%.1f%%", pr.Score()*100)})
	}
	tw.Render()

	fmt.Printf("Overall score: %.1f%%\n", result.ScorePct)
	if result.AchievedLevel != nil {
		def, _ := certify.Definition(*result.AchievedLevel)
		fmt.Printf("Achieved level: %s\n", def.DisplayName)
	} else {
		fmt.Println("Achieved level: none")
	}
}

// --- report / badge ---

func latestResult(workspace string, cfg *config.Config) (certify.Result, error) {
	store := history.NewStore(filepath.Join(workspace, cfg.History.Path))
	entry, ok, err := store.Latest()
	if err != nil {
		return certify.Result{}, err
	}
	if !ok {
		return certify.Result{}, fmt.Errorf("no assessment history found at %s: run 'certline run' first", store.Path())
	}
	return entry.Result, nil
}

func reportCmd() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Export the latest assessment as a report",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			result, err := latestResult(workspace, cfg)
			if err != nil {
				return err
			}
			var content string
			switch format {
			case "md", "markdown":
				content = report.NewMarkdownExporter().Export(result)
			case "json":
				if content, err = report.NewJSONExporter().Export(result); err != nil {
					return err
				}
			case "html":
				content = report.NewHTMLExporter().Export(result)
			default:
				return fmt.Errorf("unknown report format %q (md, json, html)", format)
			}
			if output == "" {
				fmt.Println(content)
				return nil
			}
			path := output
			if !filepath.IsAbs(path) {
				path = filepath.Join(workspace, cfg.Reports.Dir, output)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "report format (md, json, html)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func badgeCmd() *cobra.Command {
	var level, output string
	cmd := &cobra.Command{
		Use:   "badge",
		Short: "Render a certification level badge as SVG",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			if level == "" {
				result, err := latestResult(workspace, cfg)
				if err != nil {
					return err
				}
				if result.AchievedLevel == nil {
					return fmt.Errorf("latest assessment achieved no level: nothing to render")
				}
				level = string(*result.AchievedLevel)
			}
			if output == "" {
				output = fmt.Sprintf("badge-%s.svg", level)
			}
			path := output
			if !filepath.IsAbs(path) {
				path = filepath.Join(workspace, cfg.Reports.Dir, output)
			}
			if err := report.WriteSVGBadge(certify.Level(level), path); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&level, "level", "l", "", "level to render (default: latest achieved level)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default badge-<level>.svg)")
	return cmd
}

// --- score ---

func scoreCmd() *cobra.Command {
	var profilePath string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Compute a governance score from a deployment profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(profilePath)
			if err != nil {
				return err
			}
			var profile governance.Profile
			if err := yaml.Unmarshal(data, &profile); err != nil {
				return fmt.Errorf("invalid profile yaml: %w", err)
			}
			result := governance.ComputeScore(profile)
			if viper.GetBool("json") {
				return printJSON(result)
			}
			fmt.Printf("Overall governance score: %d/100 (%s)\n", result.Overall, result.Level)
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Dimension", "Score"})
			tw.AppendRow(table.Row{"Trust coverage", result.TrustCoverage})
			tw.AppendRow(table.Row{"Budget coverage", result.BudgetCoverage})
			tw.AppendRow(table.Row{"Consent coverage", result.ConsentCoverage})
			tw.AppendRow(table.Row{"Audit coverage", result.AuditCoverage})
			tw.AppendRow(table.Row{"Linter score", result.LinterScore})
			tw.Render()
			fmt.Printf("Badge: %s\n", result.BadgeURL)
			for _, d := range result.Details {
				fmt.Printf("  - %s\n", d)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "path to a deployment profile YAML")
	_ = cmd.MarkFlagRequired("profile")
	return cmd
}

// --- lifecycle ---

func lifecycleCmd() *cobra.Command {
	lc := &cobra.Command{
		Use:   "lifecycle",
		Short: "Manage certification records",
		Long: `Certification records move between active, expired, suspended, and
revoked states under the workspace renewal policy. Expiry is a manual
sweep ('certline lifecycle expire'), never automatic.`,
	}
	lc.AddCommand(lifecycleIssueCmd())
	lc.AddCommand(lifecycleRenewCmd())
	lc.AddCommand(lifecycleRevokeCmd())
	lc.AddCommand(lifecycleSuspendCmd())
	lc.AddCommand(lifecycleReinstateCmd())
	lc.AddCommand(lifecycleExpireCmd())
	lc.AddCommand(lifecycleShowCmd())
	lc.AddCommand(lifecycleListCmd())
	lc.AddCommand(lifecycleEventsCmd())
	return lc
}

// withManager loads the lifecycle manager from the workspace database,
// runs fn, and persists the snapshots fn reports as changed.
func withManager(ctx context.Context, fn func(*lifecycle.Manager) ([]lifecycle.Record, error)) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	return withRepo(ctx, func(ctx context.Context, r repo.Repo) error {
		m, err := r.LoadManager(ctx, cfg.Renewal)
		if err != nil {
			return err
		}
		changed, err := fn(m)
		if err != nil {
			return err
		}
		for _, rec := range changed {
			if err := r.SaveManagerState(ctx, []lifecycle.Record{rec}, m.Events(rec.RecordID)); err != nil {
				return err
			}
		}
		return nil
	})
}

func lifecycleIssueCmd() *cobra.Command {
	var agentID, level, reportHash string
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new certification record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				rec := m.Issue(agentID, level, reportHash)
				if err := printJSONOrIndent(rec); err != nil {
					return nil, err
				}
				return []lifecycle.Record{rec}, nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "agent id")
	cmd.Flags().StringVar(&level, "level", "", "certification level")
	cmd.Flags().StringVar(&reportHash, "report-hash", "", "assessment report hash")
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("level")
	_ = cmd.MarkFlagRequired("report-hash")
	return cmd
}

func lifecycleRenewCmd() *cobra.Command {
	var reportHash string
	cmd := &cobra.Command{
		Use:   "renew <record-id>",
		Short: "Renew a certification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				rec, err := m.Renew(args[0], reportHash)
				if err != nil {
					return nil, err
				}
				if err := printJSONOrIndent(rec); err != nil {
					return nil, err
				}
				return []lifecycle.Record{rec}, nil
			})
		},
	}
	cmd.Flags().StringVar(&reportHash, "report-hash", "", "new assessment report hash")
	return cmd
}

func lifecycleRevokeCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "revoke <record-id>",
		Short: "Revoke a certification record (terminal)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				rec, err := m.Revoke(args[0], reason)
				if err != nil {
					return nil, err
				}
				if err := printJSONOrIndent(rec); err != nil {
					return nil, err
				}
				return []lifecycle.Record{rec}, nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "revocation reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func lifecycleSuspendCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "suspend <record-id>",
		Short: "Suspend a certification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				rec, err := m.Suspend(args[0], reason)
				if err != nil {
					return nil, err
				}
				if err := printJSONOrIndent(rec); err != nil {
					return nil, err
				}
				return []lifecycle.Record{rec}, nil
			})
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "suspension reason")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func lifecycleReinstateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reinstate <record-id>",
		Short: "Reinstate a suspended record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				rec, err := m.Reinstate(args[0])
				if err != nil {
					return nil, err
				}
				if err := printJSONOrIndent(rec); err != nil {
					return nil, err
				}
				return []lifecycle.Record{rec}, nil
			})
		},
	}
}

func lifecycleExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Sweep active records past their expiry date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(cmd.Context(), func(m *lifecycle.Manager) ([]lifecycle.Record, error) {
				expired := m.CheckExpirations(time.Time{})
				if viper.GetBool("json") {
					if expired == nil {
						expired = []lifecycle.Record{}
					}
					if err := printJSON(expired); err != nil {
						return nil, err
					}
				} else {
					fmt.Printf("%d record(s) expired\n", len(expired))
				}
				return expired, nil
			})
		},
	}
}

func lifecycleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <record-id>",
		Short: "Show a certification record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				rec, err := r.GetRecord(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(rec)
			})
		},
	}
}

func lifecycleListCmd() *cobra.Command {
	var agentID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List certification records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				records, err := r.ListRecords(ctx)
				if err != nil {
					return err
				}
				if agentID != "" {
					var filtered []lifecycle.Record
					for _, rec := range records {
						if rec.AgentID == agentID {
							filtered = append(filtered, rec)
						}
					}
					records = filtered
				}
				if viper.GetBool("json") {
					return printJSON(records)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Record", "Agent", "Level", "State", "Expires", "Renewals"})
				for _, rec := range records {
					tw.AppendRow(table.Row{rec.RecordID, rec.AgentID, rec.CertificationLevel, rec.State, rec.ExpiresAt.Format("2006-01-02"), rec.RenewalCount})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&agentID, "agent", "", "filter by agent id")
	return cmd
}

func lifecycleEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events <record-id>",
		Short: "Show a record's lifecycle history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetRecord(ctx, args[0]); err != nil {
					return err
				}
				events, err := r.ListEvents(ctx, args[0])
				if err != nil {
					return err
				}
				if events == nil {
					events = []lifecycle.Event{}
				}
				return printJSONOrIndent(events)
			})
		},
	}
}

// --- fleet ---

func fleetCmd() *cobra.Command {
	fleet := &cobra.Command{
		Use:   "fleet",
		Short: "Track certification status across an agent fleet",
	}
	fleet.AddCommand(fleetRegisterCmd())
	fleet.AddCommand(fleetRemoveCmd())
	fleet.AddCommand(fleetSummaryCmd())
	fleet.AddCommand(fleetExpiringCmd())
	return fleet
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return t.UTC(), nil
}

func fleetRegisterCmd() *cobra.Command {
	var status dashboard.AgentStatus
	var level, assessed, expires string
	var passed, failed []string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register or update a fleet agent's certification status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if status.LastAssessmentDate, err = parseDate(assessed); err != nil {
				return err
			}
			if status.ExpiryDate, err = parseDate(expires); err != nil {
				return err
			}
			status.CertificationLevel = certify.Level(level)
			status.ProtocolsPassed = passed
			status.ProtocolsFailed = failed
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.UpsertFleetAgent(ctx, status); err != nil {
					return err
				}
				return printJSONOrIndent(status)
			})
		},
	}
	cmd.Flags().StringVar(&status.AgentID, "agent-id", "", "agent id")
	cmd.Flags().StringVar(&status.AgentName, "name", "", "agent display name")
	cmd.Flags().StringVar(&level, "level", "", "certification level")
	cmd.Flags().StringVar(&assessed, "assessed", "", "last assessment date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&expires, "expires", "", "expiry date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&passed, "passed", nil, "protocols passed")
	cmd.Flags().StringSliceVar(&failed, "failed", nil, "protocols failed")
	cmd.Flags().Float64Var(&status.PassRate, "pass-rate", 0, "overall pass rate in [0, 1]")
	_ = cmd.MarkFlagRequired("agent-id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("level")
	_ = cmd.MarkFlagRequired("assessed")
	_ = cmd.MarkFlagRequired("expires")
	return cmd
}

func fleetRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <agent-id>",
		Short: "Remove an agent from the fleet registry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if err := r.DeleteFleetAgent(ctx, args[0]); err != nil {
					if errors.Is(err, repo.ErrNotFound) {
						return fmt.Errorf("agent %q is not registered", args[0])
					}
					return err
				}
				fmt.Printf("Removed %s\n", args[0])
				return nil
			})
		},
	}
}

func loadDashboard(ctx context.Context, r repo.Repo) (*dashboard.Dashboard, error) {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	return r.LoadDashboard(ctx, cfg.Org.Name)
}

func fleetSummaryCmd() *cobra.Command {
	var markdown bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Fleet-wide certification summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := loadDashboard(ctx, r)
				if err != nil {
					return err
				}
				summary := d.GenerateSummary(time.Time{})
				if markdown {
					fmt.Println(d.ExportSummaryMarkdown(summary))
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(summary)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Metric", "Value"})
				tw.AppendRow(table.Row{"Total agents", summary.TotalAgents})
				tw.AppendRow(table.Row{"Certified (active)", summary.CertifiedAgents})
				tw.AppendRow(table.Row{"Expired", summary.ExpiredAgents})
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render the full Markdown dashboard")
	return cmd
}

func fleetExpiringCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "expiring",
		Short: "List agents with certifications expiring soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := loadDashboard(ctx, r)
				if err != nil {
					return err
				}
				agents := d.AgentsExpiringWithin(days)
				if viper.GetBool("json") {
					if agents == nil {
						agents = []dashboard.AgentStatus{}
					}
					return printJSON(agents)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Agent", "Level", "Expires"})
				for _, a := range agents {
					tw.AppendRow(table.Row{a.AgentName, a.CertificationLevel, a.ExpiryDate.Format("2006-01-02")})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "window in days")
	return cmd
}

// --- history ---

func historyCmd() *cobra.Command {
	h := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded assessment runs",
	}
	h.AddCommand(historyListCmd())
	h.AddCommand(historyLatestCmd())
	return h
}

func openHistory() (*history.Store, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return nil, err
	}
	return history.NewStore(filepath.Join(workspace, cfg.History.Path)), nil
}

func historyListCmd() *cobra.Command {
	var implementation string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded assessment runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			var entries []history.Entry
			if implementation != "" {
				entries, err = store.ForImplementation(implementation)
			} else {
				entries, err = store.LoadAll()
			}
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				if entries == nil {
					entries = []history.Entry{}
				}
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Recorded", "Implementation", "Score", "Level"})
			for _, e := range entries {
				level := "none"
				if e.Result.AchievedLevel != nil {
					level = string(*e.Result.AchievedLevel)
				}
				tw.AppendRow(table.Row{
					e.RecordedAt.Format(time.RFC3339),
					e.Result.RunResult.ImplementationName,
					fmt.Sprintf("%.1f%%", e.Result.ScorePct),
					level,
				})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&implementation, "implementation", "", "filter by implementation name")
	return cmd
}

func historyLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent assessment run",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openHistory()
			if err != nil {
				return err
			}
			entry, ok, err := store.Latest()
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no assessment history found at %s", store.Path())
			}
			return printJSONOrIndent(entry)
		},
	}
}

// --- serve ---

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			secret := os.Getenv("CERTLINE_JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("CERTLINE_JWT_SECRET is required for bearer auth")
			}
			logger := newLogger()
			handler, err := server.New(server.Config{
				Repo:     repo.Repo{DB: conn},
				App:      cfg,
				History:  history.NewStore(filepath.Join(workspace, cfg.History.Path)),
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: logger},
				Logger:   logger,
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			logger.Info().Str("addr", addr).Str("base_path", basePath).Msg("serving Certline API")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
