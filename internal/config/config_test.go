package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cdkexample "github.com/lex00/cdk-example-go"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cdkexample.Environment{Account: "500737756044", Region: "us-east-1"}, cfg.Env())
	assert.Equal(t, cfg.Env(), cfg.StageEnv())
	assert.Equal(t, "test", cfg.Stage.Name)
	assert.Equal(t, "main", cfg.Branch)
	assert.Equal(t, "cdk.out", cfg.Outdir)
	assert.Equal(t, "cdkexamplebucket", cfg.BucketName)
	assert.Equal(t, "CdkExampleLambdaFunction", cfg.FunctionName)
}

func TestLoad_File(t *testing.T) {
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvRegion, "")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
account: "123456789012"
region: eu-west-1
stage:
  name: qa
bucketName: other-bucket
context:
  feature: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "123456789012", cfg.Account)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, "qa", cfg.Stage.Name)
	assert.Equal(t, "other-bucket", cfg.BucketName)
	assert.Equal(t, "CdkExampleLambdaFunction", cfg.FunctionName)
	assert.Equal(t, true, cfg.Context["feature"])
}

func TestLoad_StageFollowsFileAccount(t *testing.T) {
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvRegion, "")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`account: "111111111111"`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cdkexample.Environment{Account: "111111111111", Region: "us-east-1"}, cfg.Env())
	assert.Equal(t, cfg.Env(), cfg.StageEnv())
}

func TestLoad_StagePinnedInFile(t *testing.T) {
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvRegion, "")
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
region: eu-west-1
stage:
  account: "222222222222"
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cdkexample.Environment{Account: "222222222222", Region: "eu-west-1"}, cfg.StageEnv())
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(EnvAccount, "")
	t.Setenv(EnvRegion, "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("account: [unclosed"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "parsing")
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{EnvAccount: "111111111111", EnvRegion: "eu-central-1"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)
	assert.Equal(t, "111111111111", cfg.Account)
	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, cfg.Env(), cfg.StageEnv(), "stage follows the pipeline")

	pinned := Default()
	pinned.Stage.Account = "222222222222"
	pinned.ApplyEnv(lookup)
	assert.Equal(t, "222222222222", pinned.Stage.Account)
	assert.Equal(t, "eu-central-1", pinned.Stage.Region)
}
