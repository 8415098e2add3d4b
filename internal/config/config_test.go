package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apfuzz.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{"DOMAIN": "fuzz.example"}))
	require.NoError(t, err)

	assert.Equal(t, "fuzz.example", cfg.Domain)
	assert.Equal(t, "fuzzer", cfg.Account)
	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, 4096, cfg.KeyBits)
	assert.Equal(t, "Fuzzer", cfg.Actor.DisplayName)
	assert.Equal(t, "An ActivityPub fuzzing tool", cfg.Actor.Description)
	assert.Equal(t, "https://fuzz.example/images/cat.png", cfg.Actor.Avatar)
	assert.Equal(t, "fuzzer.db", cfg.Database.Fuzzer)
	assert.Equal(t, "observatory.db", cfg.Database.Observatory)
	assert.Equal(t, ":3000", cfg.Addr())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
domain: fuzz.example:8443
account: tester
port: 8080
key_bits: 2048
target:
  endpoint: https://target.example/inbox
  user_id: https://target.example/users/alice
actor:
  display_name: Test Fuzzer
database:
  fuzzer: /var/lib/apfuzz/fuzzer.db
`)
	cfg, err := LoadWithEnv(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "fuzz.example:8443", cfg.Domain)
	assert.Equal(t, "tester", cfg.Account)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 2048, cfg.KeyBits)
	assert.Equal(t, "https://target.example/inbox", cfg.Target.Endpoint)
	assert.Equal(t, "Test Fuzzer", cfg.Actor.DisplayName)
	assert.Equal(t, "An ActivityPub fuzzing tool", cfg.Actor.Description)
	assert.Equal(t, "/var/lib/apfuzz/fuzzer.db", cfg.Database.Fuzzer)
	assert.Equal(t, "observatory.db", cfg.Database.Observatory)
	assert.Equal(t, "https://fuzz.example:8443/u/tester", cfg.Site().AccountURL("tester"))
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "domain: file.example\nport: 8080\n")
	cfg, err := LoadWithEnv(path, env(map[string]string{
		"DOMAIN":                  "env.example",
		"PORT":                    "9000",
		"ACCOUNT":                 "envuser",
		"DEFAULT_TARGET_ENDPOINT": "https://target.example/inbox",
		"DEFAULT_TARGET_USER_ID":  "https://target.example/users/bob",
		"ACTOR_DISPLAY_NAME":      "Env Fuzzer",
		"ACTOR_DESCRIPTION":       "from env",
		"ACTOR_AVATAR":            "https://cdn.example/a.png",
		"FUZZER_DB":               "f.db",
		"OBSERVATORY_DB":          "o.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "env.example", cfg.Domain)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "envuser", cfg.Account)
	assert.Equal(t, "https://target.example/inbox", cfg.Target.Endpoint)
	assert.Equal(t, "https://target.example/users/bob", cfg.Target.UserID)
	assert.Equal(t, "https://cdn.example/a.png", cfg.ActorInfo().Avatar)
	assert.Equal(t, "from env", cfg.ActorInfo().Description)
	assert.Equal(t, "f.db", cfg.Database.Fuzzer)
	assert.Equal(t, "o.db", cfg.Database.Observatory)
}

func TestLoad_EmptyEnvIgnored(t *testing.T) {
	cfg, err := LoadWithEnv("", env(map[string]string{"DOMAIN": "fuzz.example", "ACCOUNT": ""}))
	require.NoError(t, err)
	assert.Equal(t, "fuzzer", cfg.Account)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(filepath.Join(t.TempDir(), "nope.yaml"), env(map[string]string{"DOMAIN": "fuzz.example"}))
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Port)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{"missing domain", "", nil, "domain is required"},
		{"bad port env", "", map[string]string{"DOMAIN": "fuzz.example", "PORT": "http"}, "PORT"},
		{"port out of range", "port: 70000\n", map[string]string{"DOMAIN": "fuzz.example"}, "port must be at most 65535"},
		{"bad target", "target:\n  endpoint: not a url\n", map[string]string{"DOMAIN": "fuzz.example"}, "target.endpoint must be a URL"},
		{"small key", "key_bits: 512\n", map[string]string{"DOMAIN": "fuzz.example"}, "key_bits must be at least 1024"},
		{"bad account", "account: a/b\n", map[string]string{"DOMAIN": "fuzz.example"}, "account is invalid"},
		{"bad domain", "domain: https://fuzz.example\n", nil, "domain is invalid"},
		{"malformed yaml", "domain: [\n", nil, "parse config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := LoadWithEnv(path, env(tt.env))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
