package deploy

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viperKeyAnnotation marks a flag with the config key it overrides.
const viperKeyAnnotation = "viper-key"

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool | []string
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

var (
	stringFlags = []flagDef[string]{
		// Template
		{"contract", "deployment.contract", "", "Published contract template name"},
		{"template-version", "deployment.version", "", "Semver constraint for the template version (default: latest)"},
		{"templates-dir", "deployment.templates-dir", "", "Directory holding <contract>/<version>.json artifacts"},

		// CREATE2
		{"factory", "deployment.factory", "", "CREATE2 factory address"},
		{"salt", "deployment.salt", "", "CREATE2 salt: 32-byte hex, or any string to hash"},
		{"confirmation-timeout", "deployment.confirmation-timeout", "", "Maximum time to wait for a deployment to be mined"},

		// RPC
		{"rpc-url-template", "rpc.url-template", "", "RPC URL template, {{.ChainID}} is replaced with the chain id"},

		// Artifacts
		{"report", "report.path", "", "Path of the YAML run report"},
		{"metrics", "report.metrics-path", "", "Path of the Prometheus textfile"},
	}

	intFlags = []flagDef[int]{
		{"gas-limit", "deployment.gas-limit", 0, "Fixed gas limit for deployments (default: estimate)"},
	}

	boolFlags = []flagDef[bool]{
		{"bootstrap-factory", "deployment.bootstrap-factory", false, "Deploy the Arachnid CREATE2 proxy on chains that lack it"},
		{"fail-on-error", "deployment.fail-on-error", false, "Exit with an error if any chain failed"},
	}

	sliceFlags = []flagDef[[]string]{
		{"target", "networks.targets", nil, "Chain sets to deploy to, in order"},
		{"chain", "networks.chains", nil, "Additional chain ids to deploy to, after the target sets"},
	}
)

// DeclareFlags adds the deployment flags to cmd. BindFlags connects them to viper once cobra
// knows which command runs.
func DeclareFlags(cmd *cobra.Command) error {
	if err := declareFlags(cmd, stringFlags); err != nil {
		return err
	}
	if err := declareFlags(cmd, intFlags); err != nil {
		return err
	}
	if err := declareFlags(cmd, boolFlags); err != nil {
		return err
	}
	return declareFlags(cmd, sliceFlags)
}

// BindFlags binds every annotated flag of cmd to its viper key.
func BindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var errs []error
	cmd.Flags().VisitAll(func(flag *pflag.Flag) {
		keys := flag.Annotations[viperKeyAnnotation]
		if len(keys) == 0 {
			return
		}
		if err := v.BindPFlag(keys[0], flag); err != nil {
			errs = append(errs, fmt.Errorf("failed to bind flag '%s': %w", flag.Name, err))
		}
	})
	return errors.Join(errs...)
}

// declareFlags declares multiple flags and annotates them with their viper configuration keys.
func declareFlags[T flagType](cmd *cobra.Command, flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(cmd, flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag. The type parameter T determines the flag type.
func declareFlag[T flagType](cmd *cobra.Command, flagName, viperKey string, defaultValue T, description string) error {
	var zero T
	switch any(zero).(type) {
	case string:
		cmd.Flags().String(flagName, any(defaultValue).(string), description)
	case int:
		cmd.Flags().Int(flagName, any(defaultValue).(int), description)
	case bool:
		cmd.Flags().Bool(flagName, any(defaultValue).(bool), description)
	case []string:
		cmd.Flags().StringSlice(flagName, any(defaultValue).([]string), description)
	}
	if err := cmd.Flags().SetAnnotation(flagName, viperKeyAnnotation, []string{viperKey}); err != nil {
		return fmt.Errorf("failed to annotate flag '%s' on %s: %w", flagName, cmd.Name(), err)
	}
	return nil
}
