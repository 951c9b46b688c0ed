// velm compiles blueprint documents into deterministic execution plans.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/novalym/velm-sub008/core/render"
	"github.com/novalym/velm-sub008/runtime/engine"
	"github.com/novalym/velm-sub008/runtime/lexer"
)

const defaultBlueprint = "blueprint.bp"

// flags shared by every subcommand; layered under viper so velm.yaml and
// VELM_* environment variables can supply the same settings.
var (
	blueprintFile string
	setVars       []string
	varsFile      string
	envFile       string
	dialectName   string
	outputFormat  string
	noColor       bool
	debug         bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "velm",
		Short:         "Compile blueprint documents into execution plans",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&blueprintFile, "file", "f", defaultBlueprint, "Path to the blueprint document ('-' for stdin)")
	pf.StringArrayVar(&setVars, "set", nil, "External variable as key=value (repeatable)")
	pf.StringVar(&varsFile, "vars", "", "YAML file of external variables")
	pf.StringVar(&envFile, "env", "", "dotenv file loaded into the external variable layer")
	pf.StringVar(&dialectName, "dialect", "form", "Starting dialect (form or workflow)")
	pf.StringVar(&outputFormat, "output", "tree", "Plan output format: tree, yaml or json")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&debug, "debug", false, "Enable debug output")

	rootCmd.AddCommand(newCompileCmd(), newLintCmd(), newVarsCmd(), newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initConfig layers configuration: velm.yaml, then VELM_* environment
// variables, then explicit flags (flags win).
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	v.SetConfigName("velm")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("VELM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("reading velm.yaml: %w", err)
		}
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed || !v.IsSet(f.Name) {
			return
		}
		bindErr = cmd.Flags().Set(f.Name, v.GetString(f.Name))
	})
	return bindErr
}

// newEngine assembles an orchestrator from the resolved flag set.
func newEngine() (*engine.Engine, error) {
	dialect, err := lexer.ParseDialect(dialectName)
	if err != nil {
		return nil, err
	}

	external, err := externalVariables()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	logger = logger.With("run", uuid.NewString())

	return engine.New(
		engine.WithDialect(dialect),
		engine.WithRenderer(render.NewTemplateRenderer()),
		engine.WithExternalVars(external),
		engine.WithImporter(fileImporter(blueprintFile)),
		engine.WithLogger(logger),
	), nil
}

// externalVariables merges the external layer from lowest to highest
// precedence: dotenv file, YAML vars file, --set flags.
func externalVariables() (map[string]any, error) {
	out := make(map[string]any)

	if envFile != "" {
		env, err := godotenv.Read(envFile)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
		for k, v := range env {
			out[k] = v
		}
	}

	if varsFile != "" {
		raw, err := os.ReadFile(varsFile)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", varsFile, err)
		}
		parsed := make(map[string]any)
		if err := yaml.Unmarshal(raw, &parsed); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", varsFile, err)
		}
		for k, v := range parsed {
			out[k] = v
		}
	}

	for _, kv := range setVars {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			return nil, fmt.Errorf("--set %q is not key=value", kv)
		}
		out[key] = value
	}
	return out, nil
}

// fileImporter resolves @import references relative to the main document.
func fileImporter(mainFile string) engine.Importer {
	base := "."
	if mainFile != "-" {
		base = filepath.Dir(mainFile)
	}
	return func(ref string) (string, error) {
		raw, err := os.ReadFile(filepath.Join(base, ref))
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
}

// readBlueprint loads the document: stdin for '-' or piped input on the
// default file, otherwise the named file.
func readBlueprint() (string, error) {
	if blueprintFile == "-" || (blueprintFile == defaultBlueprint && hasPipedInput()) {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}
	raw, err := os.ReadFile(blueprintFile)
	if err != nil {
		return "", fmt.Errorf("error opening file %s: %w", blueprintFile, err)
	}
	return string(raw), nil
}

// hasPipedInput detects if there's data piped to stdin
func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}
