// Package main provides the CLI entrypoint for mashph.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/mashph/internal/config"
	"github.com/verte-zerg/mashph/internal/log"
	"github.com/verte-zerg/mashph/internal/mashph"
	"github.com/verte-zerg/mashph/internal/model"
	"github.com/verte-zerg/mashph/internal/recipe"
	"github.com/verte-zerg/mashph/internal/report"
	"github.com/verte-zerg/mashph/internal/salts"
	"github.com/verte-zerg/mashph/internal/session"
	"github.com/verte-zerg/mashph/internal/store"
	"github.com/verte-zerg/mashph/internal/waterui"
)

var (
	rootDB       string
	rootLogLevel string
	rootLogPath  string

	// fileCfg is the config file with environment overrides applied.
	fileCfg config.FileConfig

	predictBase     string
	predictTarget   string
	predictMashRO   float64
	predictSpargeRO float64
	predictSalts    []string
	predictCommit   bool
	predictJSON     bool

	chemLegacyGrist bool
	chemPHLow       float64
	chemPHHigh      float64
	chemTolerance   float64
)

func main() {
	if err := execute(newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs the command tree and closes the logger whether or not the
// command failed; cobra skips post-run hooks on error.
func execute(rootCmd *cobra.Command) error {
	defer log.Close()
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	defaults := config.DefaultSettings()
	rootCmd := &cobra.Command{
		Use:               "mashph",
		Short:             "Mash water chemistry and pH predictor",
		SilenceUsage:      true,
		SilenceErrors:     false,
		PersistentPreRunE: setupRoot,
	}

	rootCmd.PersistentFlags().StringVar(&rootDB, "db", defaults.DB, "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&rootLogPath, "log-file", defaults.LogPath, "also write JSON logs to this rotating file")

	rootCmd.AddCommand(newPredictCmd(defaults))
	rootCmd.AddCommand(newSessionCmd(defaults))
	rootCmd.AddCommand(newWaterCmd())
	rootCmd.AddCommand(newSaltsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func setupRoot(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	env, err := config.LoadEnv(commandContext(cmd))
	if err != nil {
		return err
	}
	fileCfg = config.WithEnv(cfg, env)

	applyStringConfig(cmd, "db", &rootDB, fileCfg.Store.DB)
	applyStringConfig(cmd, "log-level", &rootLogLevel, fileCfg.Log.Level)
	applyStringConfig(cmd, "log-file", &rootLogPath, fileCfg.Log.Path)
	if err := log.Init(&log.LogConfig{Path: rootLogPath, Level: rootLogLevel}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	return nil
}

func addChemistryFlags(cmd *cobra.Command, defaults config.Settings) {
	cmd.Flags().BoolVar(&chemLegacyGrist, "legacy-grist-color", defaults.LegacyGristColor, "count only the last specialty malt in the grist colour ratio")
	cmd.Flags().Float64Var(&chemPHLow, "ph-low", defaults.PHLow, "lower bound of the preferred mash pH")
	cmd.Flags().Float64Var(&chemPHHigh, "ph-high", defaults.PHHigh, "upper bound of the preferred mash pH")
	cmd.Flags().Float64Var(&chemTolerance, "target-tolerance", defaults.TargetTolerance, "relative ion window around the target profile")
}

func addWaterFlags(cmd *cobra.Command, defaults config.Settings) {
	cmd.Flags().StringVar(&predictBase, "base", defaults.Base, "stored water profile to use as base")
	cmd.Flags().StringVar(&predictTarget, "target", defaults.Target, "stored water profile to use as target")
	cmd.Flags().Float64Var(&predictMashRO, "mash-ro", defaults.MashRO, "RO fraction of the infusion water (0-1)")
	cmd.Flags().Float64Var(&predictSpargeRO, "sparge-ro", defaults.SpargeRO, "RO fraction of the sparge water (0-1)")
}

// resolveSettings merges flags over the config file and validates the result.
func resolveSettings(cmd *cobra.Command) (config.Settings, error) {
	applyStringConfig(cmd, "base", &predictBase, fileCfg.Water.Base)
	applyStringConfig(cmd, "target", &predictTarget, fileCfg.Water.Target)
	applyFloatConfig(cmd, "mash-ro", &predictMashRO, fileCfg.Water.MashRO)
	applyFloatConfig(cmd, "sparge-ro", &predictSpargeRO, fileCfg.Water.SpargeRO)
	applyBoolConfig(cmd, "legacy-grist-color", &chemLegacyGrist, fileCfg.Chemistry.LegacyGristColor)
	applyFloatConfig(cmd, "ph-low", &chemPHLow, fileCfg.Chemistry.PHLow)
	applyFloatConfig(cmd, "ph-high", &chemPHHigh, fileCfg.Chemistry.PHHigh)
	applyFloatConfig(cmd, "target-tolerance", &chemTolerance, fileCfg.Chemistry.TargetTolerance)

	s := config.Settings{
		MashRO:           predictMashRO,
		SpargeRO:         predictSpargeRO,
		Base:             strings.TrimSpace(predictBase),
		Target:           strings.TrimSpace(predictTarget),
		LegacyGristColor: chemLegacyGrist,
		PHLow:            chemPHLow,
		PHHigh:           chemPHHigh,
		TargetTolerance:  chemTolerance,
		LogLevel:         rootLogLevel,
		LogPath:          rootLogPath,
		DB:               rootDB,
	}
	if err := s.Validate(); err != nil {
		return config.Settings{}, err
	}
	return s, nil
}

func newPredictCmd(defaults config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "predict RECIPE.toml",
		Short: "Predict mash water ions and mash pH for a recipe",
		Args:  cobra.ExactArgs(1),
		RunE:  runPredictCmd,
	}
	addWaterFlags(cmd, defaults)
	addChemistryFlags(cmd, defaults)
	cmd.Flags().StringArrayVar(&predictSalts, "salt", nil, "salt or acid addition KIND:GRAMS[:mash|sparge] (repeatable)")
	cmd.Flags().BoolVar(&predictCommit, "commit", false, "save the resulting water and salts for the recipe")
	cmd.Flags().BoolVar(&predictJSON, "json", false, "print the report as JSON")
	return cmd
}

func runPredictCmd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	additions, err := parseSaltFlags(predictSalts)
	if err != nil {
		return err
	}

	st, err := store.Open(settings.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	sess, err := openSession(ctx, cmd, st, args[0], settings)
	if err != nil {
		return err
	}
	for _, a := range additions {
		if err := sess.AddSalt(ctx, a); err != nil {
			return err
		}
	}
	if predictCommit {
		if err := sess.Commit(ctx, st); err != nil {
			return err
		}
	}

	res, ok := sess.Result()
	if !ok {
		return fmt.Errorf("no result for recipe %q", sess.Recipe().Name)
	}
	out := cmd.OutOrStdout()
	opts := reportOptions(settings, out)
	if predictJSON {
		return report.RenderJSON(out, res, opts)
	}
	return report.Render(out, res, opts)
}

func newSessionCmd(defaults config.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session RECIPE.toml",
		Short: "Adjust water chemistry interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runSessionCmd,
	}
	addWaterFlags(cmd, defaults)
	addChemistryFlags(cmd, defaults)
	return cmd
}

func runSessionCmd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	settings, err := resolveSettings(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(settings.DB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)

	sess, err := openSession(ctx, cmd, st, args[0], settings)
	if err != nil {
		return err
	}
	library, err := st.ListWaters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list water profiles: %w", err)
	}

	opts := reportOptions(settings, os.Stdout)
	opts.Color = true
	ui := waterui.NewModel(ctx, sess, st, library, opts)
	program := tea.NewProgram(ui, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	if ui.Committed() {
		return writeLine(cmd.OutOrStdout(), fmt.Sprintf("Saved water chemistry for %q.", sess.Recipe().Name))
	}
	return writeLine(cmd.OutOrStdout(), "Discarded changes.")
}

// openSession loads the recipe with its committed water and salts, then
// applies the requested base, target and RO fractions. Config values only
// fill slots the recipe has not committed; flags always win.
func openSession(ctx context.Context, cmd *cobra.Command, st *store.Store, path string, s config.Settings) (*session.Session, error) {
	r, err := recipe.Load(path)
	if err != nil {
		return nil, err
	}
	ctx = log.With(ctx, "recipe", r.Name)

	waters, err := st.RecipeWaters(ctx, r.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe water: %w", err)
	}
	saved, ok, err := st.LoadSalts(ctx, r.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to load recipe salts: %w", err)
	}
	if ok {
		log.Debugf(ctx, "using %d saved salt additions", len(saved))
		r.Salts = saved
	}

	sess := session.New(mashph.New(mashph.DefaultConstants(), mashph.WithLegacyGristColor(s.LegacyGristColor)))
	if err := sess.SetRecipe(ctx, r, waters); err != nil {
		return nil, fmt.Errorf("recipe %q: %w", r.Name, err)
	}

	committedBase := sess.Base() != nil
	if s.Base != "" && (cmd.Flags().Changed("base") || !committedBase) {
		w, err := st.GetWater(ctx, s.Base)
		if err != nil {
			return nil, waterLookupError(err)
		}
		if err := sess.SelectBase(ctx, w); err != nil {
			return nil, err
		}
	}
	if s.Target != "" && (cmd.Flags().Changed("target") || sess.Target() == nil) {
		w, err := st.GetWater(ctx, s.Target)
		if err != nil {
			return nil, waterLookupError(err)
		}
		if err := sess.SelectTarget(ctx, w); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("mash-ro") || fileCfg.Water.MashRO != nil && !committedBase {
		if err := sess.SetMashRO(ctx, s.MashRO); err != nil {
			return nil, err
		}
	}
	if cmd.Flags().Changed("sparge-ro") || fileCfg.Water.SpargeRO != nil && !committedBase {
		if err := sess.SetSpargeRO(ctx, s.SpargeRO); err != nil {
			return nil, err
		}
	}
	return sess, nil
}

func reportOptions(s config.Settings, w io.Writer) report.Options {
	opts := report.Options{
		PHLow:     s.PHLow,
		PHHigh:    s.PHHigh,
		Tolerance: s.TargetTolerance,
	}
	if report.ShouldUseColor(w) {
		opts.Color = true
		opts.Width = report.TerminalWidth()
	}
	return opts
}

func newWaterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "water",
		Short: "Manage stored water profiles",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add FILE.toml",
		Short: "Store a water profile from a TOML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWaterAddCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored water profiles",
		Args:  cobra.NoArgs,
		RunE:  runWaterListCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show NAME",
		Short: "Print a stored water profile as TOML",
		Args:  cobra.ExactArgs(1),
		RunE:  runWaterShowCmd,
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm NAME",
		Short: "Delete a stored water profile",
		Args:  cobra.ExactArgs(1),
		RunE:  runWaterRmCmd,
	})
	return cmd
}

func runWaterAddCmd(cmd *cobra.Command, args []string) error {
	w, err := recipe.LoadWaterProfile(args[0])
	if err != nil {
		return err
	}
	st, err := store.Open(rootDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	saved, err := st.InsertWater(commandContext(cmd), w)
	if err != nil {
		return err
	}
	return writeLine(cmd.OutOrStdout(), fmt.Sprintf("Added water profile %q (%s).", saved.Name, saved.ID))
}

func runWaterListCmd(cmd *cobra.Command, _ []string) error {
	st, err := store.Open(rootDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	waters, err := st.ListWaters(commandContext(cmd))
	if err != nil {
		return err
	}
	return report.RenderWaters(cmd.OutOrStdout(), waters)
}

func runWaterShowCmd(cmd *cobra.Command, args []string) error {
	st, err := store.Open(rootDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	w, err := st.GetWater(commandContext(cmd), args[0])
	if err != nil {
		return err
	}
	return toml.NewEncoder(cmd.OutOrStdout()).Encode(w)
}

func runWaterRmCmd(cmd *cobra.Command, args []string) error {
	st, err := store.Open(rootDB)
	if err != nil {
		return fmt.Errorf("failed to open db: %w", err)
	}
	defer closeStore(st)
	if err := st.DeleteWater(commandContext(cmd), args[0]); err != nil {
		return err
	}
	return writeLine(cmd.OutOrStdout(), fmt.Sprintf("Removed water profile %q.", args[0]))
}

func newSaltsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "salts",
		Short: "Print grams of each ion per gram of salt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return report.RenderYields(cmd.OutOrStdout(), salts.Yield)
		},
	}
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func parseSaltFlags(values []string) ([]model.SaltAddition, error) {
	out := make([]model.SaltAddition, 0, len(values))
	for _, v := range values {
		a, err := salts.ParseAddition(v)
		if err != nil {
			return nil, fmt.Errorf("--salt %q: %w", v, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	d := config.DefaultSettings()
	return fmt.Sprintf(`# mashph configuration
# Uncomment a value to enable it. CLI flags override config values.
# MASHPH_DB, MASHPH_LOG_LEVEL and MASHPH_LOG_PATH override this file.

[water]
# base = "tap"              # Stored profile used when a recipe has no base
# target = "balanced"       # Stored profile used when a recipe has no target
# mash-ro = %.2f            # RO fraction of the infusion water (0-1)
# sparge-ro = %.2f          # RO fraction of the sparge water (0-1)

[chemistry]
# legacy-grist-color = false  # Count only the last specialty malt in the grist colour ratio
# ph-low = %.2f              # Lower bound of the preferred mash pH
# ph-high = %.2f             # Upper bound of the preferred mash pH
# target-tolerance = %.2f    # Relative ion window around the target profile

[log]
# level = %q              # debug, info, warn or error
# path = ""                 # Rotating JSON log file; empty logs to stderr only

[store]
# db = %q
`,
		d.MashRO,
		d.SpargeRO,
		d.PHLow,
		d.PHHigh,
		d.TargetTolerance,
		d.LogLevel,
		d.DB,
	)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func writeLine(w io.Writer, line string) error {
	_, err := fmt.Fprintln(w, line)
	return err
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func waterLookupError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w (add it with: mashph water add FILE.toml)", err)
	}
	return err
}
