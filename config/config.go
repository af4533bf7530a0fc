// Package config reads flac2opus YAML configuration files and exposes them
// to kong as flag defaults.
//
// Keys are flag names. Dashes and underscores are interchangeable, and a
// section named after a command applies only to that command:
//
//	workers: 4
//	convert:
//	  bitrate: 96000
//	  preserve_structure: false
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v2"
)

// Paths are the configuration files checked when --config is not given
var Paths = []string{
	"~/.config/flac2opus/config.yaml",
	"flac2opus.yaml",
}

// Values holds the decoded configuration keyed by normalized flag name
type Values struct {
	global   map[string]any
	commands map[string]map[string]any
}

// Load decodes a YAML document. An empty document yields empty Values.
func Load(r io.Reader) (*Values, error) {
	raw := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	v := &Values{global: map[string]any{}, commands: map[string]map[string]any{}}
	for key, value := range raw {
		section, ok := value.(map[any]any)
		if !ok {
			v.global[normalize(key)] = value
			continue
		}
		flags := map[string]any{}
		for k, fv := range section {
			flags[normalize(fmt.Sprint(k))] = fv
		}
		v.commands[normalize(key)] = flags
	}
	return v, nil
}

// LoadFile reads a configuration file from disk
func LoadFile(path string) (*Values, error) {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, rest)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Lookup returns the value for a flag, preferring the command section
func (v *Values) Lookup(command, flag string) (any, bool) {
	if section, ok := v.commands[normalize(command)]; ok {
		if value, ok := section[normalize(flag)]; ok {
			return value, true
		}
	}
	value, ok := v.global[normalize(flag)]
	return value, ok
}

// Loader is a kong.ConfigurationLoader for YAML files
func Loader(r io.Reader) (kong.Resolver, error) {
	values, err := Load(r)
	if err != nil {
		return nil, err
	}
	return values.Resolver(), nil
}

// Resolver exposes the values to kong
func (v *Values) Resolver() kong.Resolver {
	return kong.ResolverFunc(func(kctx *kong.Context, parent *kong.Path, flag *kong.Flag) (any, error) {
		command := ""
		if parent != nil && parent.Command != nil {
			command = parent.Command.Name
		}
		value, ok := v.Lookup(command, flag.Name)
		if !ok {
			return nil, nil
		}
		if list, ok := value.([]any); ok {
			parts := make([]string, len(list))
			for i, item := range list {
				parts[i] = fmt.Sprint(item)
			}
			return strings.Join(parts, ","), nil
		}
		return value, nil
	})
}

func normalize(key string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "_", "-"))
}
