package configs

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var Values Config

var ErrMissingCredential = errors.New("missing credential")

type (
	Config struct {
		Log         Log         `mapstructure:"log"`
		Credentials Credentials `mapstructure:"credentials"`
		RPC         RPC         `mapstructure:"rpc"`
		Deployment  Deployment  `mapstructure:"deployment"`
		Networks    Networks    `mapstructure:"networks"`
		Report      Report      `mapstructure:"report"`
		Devnet      Devnet      `mapstructure:"devnet"`
	}

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	}

	// Credentials are read from the environment, never from the config file.
	Credentials struct {
		PrivateKey string `mapstructure:"private-key"`
		SecretKey  string `mapstructure:"secret-key"`
	}

	RPC struct {
		URLTemplate  string            `mapstructure:"url-template"`
		SecretHeader string            `mapstructure:"secret-header"`
		Overrides    map[string]string `mapstructure:"overrides"`
	}

	Deployment struct {
		Contract            string        `mapstructure:"contract"`
		Version             string        `mapstructure:"version"`
		TemplatesDir        string        `mapstructure:"templates-dir"`
		Factory             string        `mapstructure:"factory"`
		Salt                string        `mapstructure:"salt"`
		ConstructorArgs     []string      `mapstructure:"constructor-args"`
		GasLimit            uint64        `mapstructure:"gas-limit"`
		ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout"`
		BootstrapFactory    bool          `mapstructure:"bootstrap-factory"`
		FailOnError         bool          `mapstructure:"fail-on-error"`
	}

	Networks struct {
		Sets    map[string][]uint64 `mapstructure:"sets"`
		Targets []string            `mapstructure:"targets"`
		Chains  []uint64            `mapstructure:"chains"`
	}

	Report struct {
		Path        string `mapstructure:"path"`
		MetricsPath string `mapstructure:"metrics-path"`
	}

	Devnet struct {
		Image   string `mapstructure:"image"`
		Port    int    `mapstructure:"port"`
		FundWei string `mapstructure:"fund-wei"`
	}
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Validate checks that both the signing key and the backend secret are present.
func (c Credentials) Validate() error {
	var errs []error

	if strings.TrimSpace(c.PrivateKey) == "" {
		errs = append(errs, fmt.Errorf("%w: wallet private key (WALLET_PRIVATE_KEY)", ErrMissingCredential))
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		errs = append(errs, fmt.Errorf("%w: backend secret key (THIRDWEB_SECRET_KEY)", ErrMissingCredential))
	}

	return errors.Join(errs...)
}

func (c *Deployment) Validate() error {
	var errs []error

	if c.Contract == "" {
		errs = append(errs, errors.New("deployment.contract is required"))
	}
	if c.TemplatesDir == "" {
		errs = append(errs, errors.New("deployment.templates-dir is required"))
	}
	if !common.IsHexAddress(c.Factory) {
		errs = append(errs, fmt.Errorf("deployment.factory '%s' is not a valid address", c.Factory))
	}
	if c.ConfirmationTimeout <= 0 {
		errs = append(errs, errors.New("deployment.confirmation-timeout must be greater than 0"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("deployment configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Networks) Validate() error {
	var errs []error

	if len(c.Targets) == 0 && len(c.Chains) == 0 {
		errs = append(errs, errors.New("networks.targets or networks.chains is required"))
	}
	for _, target := range c.Targets {
		if !c.hasSet(target) {
			errs = append(errs, fmt.Errorf("networks.targets references unknown set '%s'", target))
		}
	}
	for name, ids := range c.Sets {
		if slices.Contains(ids, 0) {
			errs = append(errs, fmt.Errorf("networks.sets.%s contains chain id 0", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("networks configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *RPC) Validate() error {
	if c.URLTemplate == "" && len(c.Overrides) == 0 {
		return errors.New("rpc.url-template is required")
	}
	return nil
}

func (c *Log) Validate() error {
	if c.Format != LogFormatText && c.Format != LogFormatJSON {
		return fmt.Errorf("log.format must be either '%s' or '%s'", LogFormatText, LogFormatJSON)
	}
	return nil
}

// Validate checks everything a deploy run needs except credentials, which callers
// check separately because the predict command only needs the secret.
func (c *Config) Validate() error {
	return errors.Join(
		c.Log.Validate(),
		c.RPC.Validate(),
		c.Deployment.Validate(),
		c.Networks.Validate(),
	)
}

// hasSet matches target case-insensitively since viper lowercases the keys of networks.sets.
func (c *Networks) hasSet(target string) bool {
	if _, ok := c.Sets[target]; ok {
		return true
	}
	_, ok := c.Sets[strings.ToLower(target)]
	return ok
}
