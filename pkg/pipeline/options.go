package pipeline

import (
	"fmt"
	"strconv"
)

// ConfigurationOptionType represents the possible types of a ConfigurationOption's value.
type ConfigurationOptionType int

const (
	// BoolConfigurationOption reflects the boolean value type.
	BoolConfigurationOption ConfigurationOptionType = iota
	// IntConfigurationOption reflects the integer value type.
	IntConfigurationOption
	// FloatConfigurationOption reflects a floating point value type.
	FloatConfigurationOption
	// StringConfigurationOption reflects the string value type.
	StringConfigurationOption
)

// String returns the type name shown next to an option in `shorefilter stages`.
func (opt ConfigurationOptionType) String() string {
	switch opt {
	case BoolConfigurationOption:
		return "bool"
	case IntConfigurationOption:
		return "int"
	case FloatConfigurationOption:
		return "float"
	case StringConfigurationOption:
		return "string"
	default:
		return "type(" + strconv.Itoa(int(opt)) + ")"
	}
}

// ConfigurationOption documents one tunable parameter of a stage.
type ConfigurationOption struct {
	// Default is the value used when the config file leaves the key unset.
	Default any
	// Key is the dotted configuration key, e.g. "filter.hampel.window_size".
	Key string
	// Description is the help text.
	Description string
	// Type specifies the kind of the option's value.
	Type ConfigurationOptionType
}

// FormatDefault renders the default for help output; strings are quoted.
func (opt ConfigurationOption) FormatDefault() string {
	if opt.Type == StringConfigurationOption {
		return fmt.Sprintf("%q", opt.Default)
	}

	return fmt.Sprint(opt.Default)
}
