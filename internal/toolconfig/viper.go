package toolconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// ViperSettings reads settings from a viper instance. Viper folds keys to
// lower case and nests dotted keys, so tool tables come back in that shape.
type ViperSettings struct {
	v *viper.Viper
}

// NewViperSettings wraps v. A nil v uses the global viper instance.
func NewViperSettings(v *viper.Viper) *ViperSettings {
	if v == nil {
		v = viper.GetViper()
	}
	return &ViperSettings{v: v}
}

// GetString returns the string at key, converting scalars. Tables and lists
// are type errors.
func (s *ViperSettings) GetString(key string) (string, error) {
	if !s.v.IsSet(key) {
		return "", ErrNotFound
	}
	val := s.v.Get(key)
	switch val.(type) {
	case map[string]any, []any:
		return "", fmt.Errorf("invalid type: expected a string, found %T", val)
	}
	return cast.ToStringE(val)
}

// GetTable returns the table at key with defaults, file values and
// environment overrides merged.
func (s *ViperSettings) GetTable(key string) (map[string]any, error) {
	var cur any = s.v.AllSettings()
	for _, part := range strings.Split(strings.ToLower(key), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("invalid type: %s is not a table", key)
		}
		if cur, ok = m[part]; !ok {
			return nil, ErrNotFound
		}
	}
	table, ok := cur.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid type: expected a table, found %T", cur)
	}
	return table, nil
}

// SetDefaults registers the built-in tool configurations on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(ToolsTableKey+".meld.merge-args", []string{"$left", "$base", "$right", "-o", "$output", "--auto-merge"})
}
