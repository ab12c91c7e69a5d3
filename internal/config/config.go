// Package config resolves and loads Script Kit's on-disk configuration:
// the `<kit-dir>` marker-file discovery walk, a YAML settings file layered
// with environment variables via viper, and a TOML export path for the
// `export-config` CLI command.
//
// Grounded on the teacher's own `internal/config/config.go`: the
// marker-file ("is this a valid root?") directory-resolution walk and the
// command-name-validation regex are kept almost verbatim, generalized from
// the teacher's `.h2-dir.txt`/`H2_DIR` Claude-Code-session root to this
// runtime's `.kit-dir.txt`/`SCRIPT_KIT_DIR` kit root, and from validating
// a Telegram bridge's allowed bot commands to validating the user-supplied
// editor/shell executable names this runtime shells out to.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/johnlindquist/scriptkit-gpui/internal/version"
)

const markerFile = ".kit-dir.txt"

// Config is Script Kit's resolved, layered configuration: file settings
// overridden by SCRIPT_KIT_* environment variables. No CONDUCTOR_*
// variable is read.
type Config struct {
	KenvDir               string              `yaml:"kenv_dir" mapstructure:"kenv_dir"`
	Editor                string              `yaml:"editor" mapstructure:"editor"`
	Shell                 string              `yaml:"shell" mapstructure:"shell"`
	AnthropicAPIKey       string              `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	OpenAIAPIKey          string              `yaml:"openai_api_key" mapstructure:"openai_api_key"`
	FrecencyHalfLifeHours int                 `yaml:"frecency_half_life_hours" mapstructure:"frecency_half_life_hours"`
	Notifications         NotificationsConfig `yaml:"notifications" mapstructure:"notifications"`
}

// NotificationsConfig holds optional OS-level notification bridge settings.
type NotificationsConfig struct {
	MacOSNotify bool `yaml:"macos_notify" mapstructure:"macos_notify"`
}

func defaultConfig() *Config {
	return &Config{
		Shell:                 "/bin/zsh",
		FrecencyHalfLifeHours: 7 * 24,
	}
}

// IsKitDir checks if dir contains a valid .kit-dir.txt marker file.
func IsKitDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, markerFile))
	return err == nil && !info.IsDir()
}

// ReadMarkerVersion reads the version string from .kit-dir.txt.
func ReadMarkerVersion(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, markerFile))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// WriteMarker writes .kit-dir.txt with the current version.
func WriteMarker(dir string) error {
	return os.WriteFile(filepath.Join(dir, markerFile), []byte("v"+version.Version+"\n"), 0o644)
}

// looksLikeKitDir returns true if dir exists and contains the expected
// kit subdirectories, even without a .kit-dir.txt marker. Used for
// one-time migration of a pre-existing ~/.kit/.
func looksLikeKitDir(dir string) bool {
	for _, sub := range []string{"db", "scripts", "scriptlets"} {
		if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
			return false
		}
	}
	return true
}

var (
	resolvedDir string
	resolvedErr error
	resolveOnce sync.Once
)

// ResolveDir finds the kit root directory.
// Order: SCRIPT_KIT_DIR env var -> walk up CWD -> ~/.kit/ fallback.
// Result is cached for the process lifetime.
func ResolveDir() (string, error) {
	resolveOnce.Do(func() {
		resolvedDir, resolvedErr = resolveDir()
	})
	return resolvedDir, resolvedErr
}

// ResetResolveCache resets the cached ResolveDir result. For testing only.
func ResetResolveCache() {
	resolveOnce = sync.Once{}
	resolvedDir = ""
	resolvedErr = nil
}

func resolveDir() (string, error) {
	if dir := os.Getenv("SCRIPT_KIT_DIR"); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("SCRIPT_KIT_DIR: %w", err)
		}
		if !IsKitDir(abs) {
			return "", fmt.Errorf("SCRIPT_KIT_DIR=%s is not a kit directory (missing %s)", abs, markerFile)
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir := cwd
	for {
		if IsKitDir(dir) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	global := filepath.Join(home, ".kit")
	if IsKitDir(global) {
		return global, nil
	}

	if looksLikeKitDir(global) {
		if err := WriteMarker(global); err != nil {
			return "", fmt.Errorf("migrate %s: %w", global, err)
		}
		return global, nil
	}

	return "", fmt.Errorf("no kit directory found; run 'scriptkit init' to create one")
}

// KitDir returns the resolved kit dir or falls back to ~/.kit, never
// panicking. Callers that need an error should use ResolveDir directly.
func KitDir() string {
	dir, err := ResolveDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return filepath.Join(".", ".kit")
		}
		return filepath.Join(home, ".kit")
	}
	return dir
}

// ResolveDirAll discovers all kit directories on the system.
// Returns a deduplicated, sorted list of absolute paths.
// Best-effort: silently skips inaccessible directories.
func ResolveDirAll() []string {
	seen := make(map[string]bool)
	var dirs []string

	add := func(dir string) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return
		}
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		if !seen[abs] {
			seen[abs] = true
			dirs = append(dirs, abs)
		}
	}

	if dir := os.Getenv("SCRIPT_KIT_DIR"); dir != "" {
		if IsKitDir(dir) {
			add(dir)
		}
	}

	if cwd, err := os.Getwd(); err == nil {
		dir := cwd
		for {
			if IsKitDir(dir) {
				add(dir)
			}
			parent := filepath.Dir(dir)
			if entries, err := os.ReadDir(parent); err == nil {
				for _, e := range entries {
					if !e.IsDir() {
						continue
					}
					sibling := filepath.Join(parent, e.Name())
					if IsKitDir(sibling) {
						add(sibling)
					}
				}
			}
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		global := filepath.Join(home, ".kit")
		if IsKitDir(global) {
			add(global)
		} else if looksLikeKitDir(global) {
			add(global)
		}
	}

	sort.Strings(dirs)
	return dirs
}

// Load resolves the kit dir and loads its layered configuration (file +
// environment).
func Load() (*Config, error) {
	dir, err := ResolveDir()
	if err != nil {
		dir = KitDir()
	}
	return LoadFrom(filepath.Join(dir, "config.yaml"))
}

// LoadFrom reads Script Kit's config from path, layered with
// SCRIPT_KIT_* environment variables via viper (CONDUCTOR_* variables are
// not read). A missing
// file is not an error: defaults plus environment variables still apply.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("SCRIPT_KIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("kenv_dir", "SCRIPT_KIT_KENV")
	_ = v.BindEnv("anthropic_api_key", "SCRIPT_KIT_ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai_api_key", "SCRIPT_KIT_OPENAI_API_KEY")

	cfg := defaultConfig()
	for k, val := range structDefaults(cfg) {
		v.SetDefault(k, val)
	}

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func structDefaults(cfg *Config) map[string]any {
	return map[string]any{
		"shell":                   cfg.Shell,
		"frecency_half_life_hours": cfg.FrecencyHalfLifeHours,
	}
}

// ExportConfig serializes the resolved configuration as TOML, for the
// `export-config` CLI command (portable, comment-friendly output distinct
// from the YAML the runtime reads).
func ExportConfig(w io.Writer, cfg *Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

var execNameRe = regexp.MustCompile(`^[a-zA-Z0-9_./-]+$`)

// validate rejects editor/shell settings that are not a plain executable
// name or path, since both are invoked directly as argv[0] of a spawned
// process.
func (c *Config) validate() error {
	if c.Editor != "" && !execNameRe.MatchString(c.Editor) {
		return fmt.Errorf("config: editor %q is not a valid executable name or path", c.Editor)
	}
	if c.Shell != "" && !execNameRe.MatchString(c.Shell) {
		return fmt.Errorf("config: shell %q is not a valid executable name or path", c.Shell)
	}
	return nil
}
