// Package toolconfig resolves which external program acts as the diff editor
// or merge tool, and how it is invoked.
package toolconfig

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// Setting keys.
const (
	DiffEditorKey  = "ui.diff-editor"
	MergeEditorKey = "ui.merge-editor"
	ToolsTableKey  = "tool-configurations"
)

// DefaultEditor is used when no editor is configured for a role.
const DefaultEditor = "meld"

// ErrNotFound is returned by a Settings source for keys that are not set.
var ErrNotFound = errors.New("config key not found")

// Settings is a layered configuration source.
type Settings interface {
	GetString(key string) (string, error)
	GetTable(key string) (map[string]any, error)
}

// ToolSpec describes how to invoke an external tool.
type ToolSpec struct {
	// Program to execute. Defaults to the tool name.
	Program string `mapstructure:"program"`
	// EditArgs precede the two directory arguments when editing diffs.
	EditArgs []string `mapstructure:"edit-args"`
	// MergeArgs are interpolated with $left, $right, $base and $output when
	// resolving conflicts. Only whole arguments are substituted.
	MergeArgs []string `mapstructure:"merge-args"`
	// EditsConflictMarkers seeds $output with the conflict and its markers.
	// Markers left in the output are read back as a partial resolution.
	EditsConflictMarkers bool `mapstructure:"merge-tool-edits-conflict-markers"`
}

// WithProgram returns a spec that runs program with no arguments.
func WithProgram(program string) ToolSpec {
	return ToolSpec{Program: program}
}

// Notice is an informational message produced while resolving a tool. The
// caller decides whether and where to show it.
type Notice struct {
	Message string
}

func (n Notice) String() string { return n.Message }

// ConfigError reports malformed settings under Key.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("Invalid config: %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// MergeArgsNotConfiguredError is returned when the merge tool has no
// argument template.
type MergeArgsNotConfiguredError struct {
	ToolName string
}

func (e *MergeArgsNotConfiguredError) Error() string {
	return fmt.Sprintf("To use `%s` as a merge tool, the config `%s.%s.merge-args` must be defined",
		e.ToolName, ToolsTableKey, e.ToolName)
}

// EditorName reads the tool name configured at key, falling back to
// DefaultEditor with a notice when the key is unset.
func EditorName(s Settings, key string) (string, *Notice, error) {
	name, err := s.GetString(key)
	switch {
	case err == nil:
		return name, nil, nil
	case errors.Is(err, ErrNotFound):
		return DefaultEditor, &Notice{
			Message: fmt.Sprintf("Using default editor '%s'; you can change this by setting %s", DefaultEditor, key),
		}, nil
	default:
		return "", nil, &ConfigError{Key: key, Err: err}
	}
}

// Lookup loads the tool configuration for name. A name with no entry is used
// as the program itself. name stays the default program even when the entry
// was found under a lower-cased or nested key.
func Lookup(s Settings, name string) (ToolSpec, error) {
	table, err := s.GetTable(ToolsTableKey)
	if errors.Is(err, ErrNotFound) {
		return WithProgram(name), nil
	}
	if err != nil {
		return ToolSpec{}, &ConfigError{Key: ToolsTableKey, Err: err}
	}

	entry, ok := tableEntry(table, name)
	if !ok {
		return WithProgram(name), nil
	}

	key := ToolsTableKey + "." + name
	var spec ToolSpec
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &spec,
		TagName: "mapstructure",
	})
	if err != nil {
		return ToolSpec{}, &ConfigError{Key: key, Err: err}
	}
	if err := dec.Decode(entry); err != nil {
		return ToolSpec{}, &ConfigError{Key: key, Err: err}
	}

	if spec.Program == "" {
		spec.Program = name
	}
	return spec, nil
}

// tableEntry finds name in a tool table. Sources that fold keys to lower case
// or nest dotted keys are handled by retrying with the lower-cased name and
// then walking its dot-separated parts.
func tableEntry(table map[string]any, name string) (any, bool) {
	if entry, ok := table[name]; ok {
		return entry, true
	}
	lower := strings.ToLower(name)
	if entry, ok := table[lower]; ok {
		return entry, true
	}
	if !strings.Contains(lower, ".") {
		return nil, false
	}
	var cur any = table
	for _, part := range strings.Split(lower, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// DiffEditor resolves the tool for editing diffs. Empty edit arguments are
// valid: the two directories are always appended.
func DiffEditor(s Settings) (ToolSpec, *Notice, error) {
	name, notice, err := EditorName(s, DiffEditorKey)
	if err != nil {
		return ToolSpec{}, nil, err
	}
	spec, err := Lookup(s, name)
	if err != nil {
		return ToolSpec{}, notice, err
	}
	return spec, notice, nil
}

// MergeEditor resolves the tool for resolving conflicts. The tool must have
// merge arguments configured.
func MergeEditor(s Settings) (ToolSpec, *Notice, error) {
	name, notice, err := EditorName(s, MergeEditorKey)
	if err != nil {
		return ToolSpec{}, nil, err
	}
	spec, err := Lookup(s, name)
	if err != nil {
		return ToolSpec{}, notice, err
	}
	if len(spec.MergeArgs) == 0 {
		return ToolSpec{}, notice, &MergeArgsNotConfiguredError{ToolName: name}
	}
	return spec, notice, nil
}
