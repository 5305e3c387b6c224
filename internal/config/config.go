// Package config loads cdk-example settings from cdk-example.yaml and the
// environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables, then command-line flags applied by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	cdkexample "github.com/lex00/cdk-example-go"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "cdk-example.yaml"

// Environment variables overriding the file.
const (
	EnvAccount = "CDK_DEFAULT_ACCOUNT"
	EnvRegion  = "CDK_DEFAULT_REGION"
)

// Defaults of the deployed topology.
const (
	DefaultAccount      = "500737756044"
	DefaultRegion       = "us-east-1"
	DefaultStageName    = "test"
	DefaultBranch       = "main"
	DefaultOutdir       = "cdk.out"
	DefaultBucketName   = "cdkexamplebucket"
	DefaultFunctionName = "CdkExampleLambdaFunction"
)

// Config holds all settings consumed when building the app.
type Config struct {
	Account string      `yaml:"account"`
	Region  string      `yaml:"region"`
	Stage   StageConfig `yaml:"stage"`
	Outdir  string      `yaml:"outdir"`
	Branch  string      `yaml:"branch"`

	BucketName   string `yaml:"bucketName"`
	FunctionName string `yaml:"functionName"`

	// Context is exposed to constructs through Node.TryGetContext.
	Context map[string]any `yaml:"context"`
}

// StageConfig is the target of the application stage.
type StageConfig struct {
	Name    string `yaml:"name"`
	Account string `yaml:"account"`
	Region  string `yaml:"region"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Account: DefaultAccount,
		Region:  DefaultRegion,
		Stage: StageConfig{
			Name:    DefaultStageName,
			Account: DefaultAccount,
			Region:  DefaultRegion,
		},
		Outdir:       DefaultOutdir,
		Branch:       DefaultBranch,
		BucketName:   DefaultBucketName,
		FunctionName: DefaultFunctionName,
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error when path is DefaultFile or empty.
func Load(path string) (Config, error) {
	cfg := Default()
	// Left empty so a file moving only the pipeline moves the stage too.
	cfg.Stage.Account, cfg.Stage.Region = "", ""

	explicit := path != "" && path != DefaultFile
	if path == "" {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.ApplyEnv(os.LookupEnv)
	cfg.fillDefaults()
	return cfg, nil
}

// ApplyEnv overrides the pipeline account and region from the environment.
// The stage follows the pipeline unless the file set it explicitly.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAccount); ok && v != "" {
		if c.Stage.Account == c.Account {
			c.Stage.Account = v
		}
		c.Account = v
	}
	if v, ok := lookup(EnvRegion); ok && v != "" {
		if c.Stage.Region == c.Region {
			c.Stage.Region = v
		}
		c.Region = v
	}
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Account == "" {
		c.Account = d.Account
	}
	if c.Region == "" {
		c.Region = d.Region
	}
	if c.Stage.Name == "" {
		c.Stage.Name = d.Stage.Name
	}
	if c.Stage.Account == "" {
		c.Stage.Account = c.Account
	}
	if c.Stage.Region == "" {
		c.Stage.Region = c.Region
	}
	if c.Outdir == "" {
		c.Outdir = d.Outdir
	}
	if c.Branch == "" {
		c.Branch = d.Branch
	}
	if c.BucketName == "" {
		c.BucketName = d.BucketName
	}
	if c.FunctionName == "" {
		c.FunctionName = d.FunctionName
	}
}

// Env returns the pipeline stack environment.
func (c Config) Env() cdkexample.Environment {
	return cdkexample.Environment{Account: c.Account, Region: c.Region}
}

// StageEnv returns the application stage environment.
func (c Config) StageEnv() cdkexample.Environment {
	return cdkexample.Environment{Account: c.Stage.Account, Region: c.Stage.Region}
}
