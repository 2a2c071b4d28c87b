package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort         = 6008
	DefaultBind         = "127.0.0.1"
	DefaultPollInterval = 50 * time.Millisecond
	DefaultConfigFile   = "config.yaml"
)

// Settings are editor-side switches the server only ever reads.
type Settings struct {
	EnableSmartResolve        bool `yaml:"enable_smart_resolve"`
	ShowNativeSymbolsInEditor bool `yaml:"show_native_symbols_in_editor"`
}

type Env struct {
	Root string `yaml:"root"`
	Home string `yaml:"-"`

	Port         int           `yaml:"port"`
	Bind         string        `yaml:"bind"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// ReadTimeout bounds each blocking read inside a decode cycle. Zero
	// waits forever.
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`

	Settings Settings `yaml:"settings"`
}

func Default() *Env {
	return &Env{
		Home:         Home(),
		Port:         DefaultPort,
		Bind:         DefaultBind,
		PollInterval: DefaultPollInterval,
		Settings: Settings{
			EnableSmartResolve: true,
		},
	}
}

func Home() string {
	dir := os.Getenv("TCPLS_HOME")
	if dir != "" {
		return dir
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("couldn't get user config dir: %w", err))
	}
	return filepath.Join(dir, "tcpls")
}

// Load reads path over the defaults. A missing file is not an error when
// path is the default location under Home.
func Load(path string) (*Env, error) {
	e := Default()
	explicit := path != ""
	if !explicit {
		path = filepath.Join(e.Home, DefaultConfigFile)
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, e); err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
		}
	}

	if e.Root == "" {
		e.Root = os.Getenv("TCPLS_ROOT")
	}
	return e, e.Validate()
}

func (e *Env) Validate() error {
	if e.Port < 0 || e.Port > 65535 {
		return fmt.Errorf("invalid port %d", e.Port)
	}
	if e.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", e.PollInterval)
	}
	if e.ReadTimeout < 0 {
		return fmt.Errorf("read timeout must not be negative, got %s", e.ReadTimeout)
	}
	if e.MaxHeaderBytes < 0 {
		return fmt.Errorf("max header bytes must not be negative, got %d", e.MaxHeaderBytes)
	}
	return nil
}
