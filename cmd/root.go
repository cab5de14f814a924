package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/joescharf/mtool/internal/backend"
	"github.com/joescharf/mtool/internal/exttool"
	"github.com/joescharf/mtool/internal/mergetools"
	"github.com/joescharf/mtool/internal/models"
	"github.com/joescharf/mtool/internal/output"
	"github.com/joescharf/mtool/internal/store"
	"github.com/joescharf/mtool/internal/toolconfig"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	logger    *zap.Logger
	dataStore store.Store
	repo      *backend.GitStore

	verbose bool
	dryRun  bool
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "mtool",
	Short: "Resolve conflicts and edit diffs with external tools",
	Long: `mtool hands conflicted files and tree diffs to external merge tools and
diff editors (meld, kdiff3, vimdiff, ...) and records whatever the tool
leaves behind as a new tree in the repository's object database.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (shows exact tool invocations)")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/mtool/config.yaml)")
	rootCmd.PersistentFlags().String("repo", "", "Repository path (default: current directory)")
	_ = viper.BindPFlag("repo", rootCmd.PersistentFlags().Lookup("repo"))
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "mtool")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MTOOL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	setDefaults(viper.GetViper())

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

// setDefaults registers every built-in default on v.
func setDefaults(v *viper.Viper) {
	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "mtool")

	v.SetDefault("repo", ".")
	v.SetDefault("state_dir", defaultConfigDir)
	v.SetDefault("db_path", filepath.Join(defaultConfigDir, "mtool.db"))
	v.SetDefault("snapshot.ignores", []string{})
	toolconfig.SetDefaults(v)
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	logger = zap.NewNop()
	if debug {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}

	// Repository and store are opened lazily so config/version run anywhere.
}

// getStore returns the shared operation log, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getRepo returns the shared object store of the repository at --repo.
func getRepo() (*backend.GitStore, error) {
	if repo != nil {
		return repo, nil
	}
	r, err := backend.OpenRepository(viper.GetString("repo"))
	if err != nil {
		return nil, err
	}
	repo = r
	return repo, nil
}

// newEditor wires the merge-tool workflows to the CLI's output.
func newEditor(s mergetools.Store) *mergetools.Editor {
	runner := exttool.NewRunner(logger)
	runner.OnInvoke = func(inv exttool.Invocation) {
		ui.VerboseLog("Running %s %s", inv.Program, strings.Join(inv.Args, " "))
	}
	e := mergetools.NewEditor(s, toolconfig.NewViperSettings(nil), runner)
	e.Notify = func(n toolconfig.Notice) {
		ui.Hint("%s", n.Message)
	}
	return e
}

// snapshotIgnores returns the base ignore rules for snapshots: the
// repository's own .git directory plus snapshot.ignores.
func snapshotIgnores() []gitignore.Pattern {
	patterns := []gitignore.Pattern{gitignore.ParsePattern(".git", nil)}
	for _, p := range viper.GetStringSlice("snapshot.ignores") {
		patterns = append(patterns, gitignore.ParsePattern(p, nil))
	}
	return patterns
}

// editorName returns the tool configured for key without printing notices.
func editorName(key string) string {
	name, _, err := toolconfig.EditorName(toolconfig.NewViperSettings(nil), key)
	if err != nil {
		return ""
	}
	return name
}

// recordOperation stores op in the operation log. Failures only show up in
// verbose mode: the log never gets in the way of the workflow itself.
func recordOperation(op *models.Operation, runErr error) {
	op.Status = models.OperationSucceeded
	if runErr != nil {
		op.Status = models.OperationFailed
		op.Error = runErr.Error()
	}

	s, err := getStore()
	if err != nil {
		ui.VerboseLog("Operation log unavailable: %v", err)
		return
	}
	if err := s.RecordOperation(context.Background(), op); err != nil {
		ui.VerboseLog("Could not record operation: %v", err)
	}
}
