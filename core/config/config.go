package config

import (
	_ "embed"
	"os"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

var (
	//go:embed default/config.yaml
	defaultConfigData []byte
)

const (
	ConfigurationName = "config.yaml"
)

type Configuration struct {
	configFs afero.Fs

	// LineWrap is the default wrap length of the l command.
	LineWrap       int    `json:"line_wrap" validate:"gte=1"`
	Sandbox        bool   `json:"sandbox"`
	FollowSymlinks bool   `json:"follow_symlinks"`
	EventLog       string `json:"event_log" validate:"omitempty,excludes=/"`

	Playground Playground `json:"playground"`
}

// Validate the configuration for basic semantic errors.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		return name
	})

	return validate.Struct(c)
}

type Playground struct {
	Prompt   string `json:"prompt" validate:"required"`
	Hostname string `json:"hostname" validate:"required,hostname_rfc1123"`
	// Home is the user's home and starting directory.
	Home string `json:"home" validate:"omitempty,startswith=/"`
	// Files maps absolute paths to their contents.
	Files map[string]string `json:"files" validate:"dive,keys,startswith=/,endkeys"`
}

// SeedFiles writes the playground files to fs, creating parent directories
// as needed. Files are written in path order.
func (p *Playground) SeedFiles(fs afero.Fs) error {
	var paths []string
	for path := range p.Files {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := fs.MkdirAll(parentDir(path), 0755); err != nil {
			return err
		}
		if err := afero.WriteFile(fs, path, []byte(p.Files[path]), 0644); err != nil {
			return err
		}
	}
	return nil
}

func parentDir(path string) string {
	if i := strings.LastIndex(path, "/"); i > 0 {
		return path[:i]
	}
	return "/"
}

func (c *Configuration) fs() afero.Fs {
	return c.configFs
}

// EventLogEnabled returns true if events should be recorded.
func (c *Configuration) EventLogEnabled() bool {
	return c.EventLog != ""
}

// OpenEventLog opens the event log in an append only state.
func (c *Configuration) OpenEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
}

// ReadEventLog opens the event log for reading.
func (c *Configuration) ReadEventLog() (afero.File, error) {
	return c.fs().OpenFile(c.EventLog, os.O_RDONLY, 0600)
}

func defaultConfig() *Configuration {
	var out Configuration
	if err := yaml.UnmarshalStrict(defaultConfigData, &out); err != nil {
		panic(err)
	}
	return &out
}
