// Package settings owns the active configuration of a running dashboard: it
// loads the persisted setup, applies values that can change live and flags
// the one value (the listening port) that needs a restart.
package settings

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jamesprial/ward/internal/store"
)

// InitialPort is the port the listener binds before any configuration is
// loaded, and the default port of a new configuration.
const InitialPort = 4000

// Port bounds accepted for a configuration.
const (
	MinPort = 10
	MaxPort = 65535
)

// MaxServerNameLen is the longest server name accepted, in characters.
const MaxServerNameLen = 10

// Keys of the setup section.
const (
	KeyServerName      = "serverName"
	KeyTheme           = "theme"
	KeyPort            = "port"
	KeyEnableFog       = "enableFog"
	KeyBackgroundColor = "backgroundColor"
)

// Keys lists every setup key in the order they are written.
var Keys = []string{KeyServerName, KeyTheme, KeyPort, KeyEnableFog, KeyBackgroundColor}

// Theme is the dashboard color scheme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// Defaults for absent values.
const (
	DefaultServerName      = "Ward"
	DefaultTheme           = ThemeLight
	DefaultEnableFog       = true
	DefaultBackgroundColor = "default"

	// LegacyBackgroundColor is backfilled into stores written before the
	// background option existed.
	LegacyBackgroundColor = "#303030"
)

var backgroundPattern = regexp.MustCompile(`^(default|#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3}))$`)

// Record is a complete configuration.
type Record struct {
	ServerName      string `json:"serverName"`
	Theme           Theme  `json:"theme"`
	Port            int    `json:"port"`
	EnableFog       bool   `json:"enableFog"`
	BackgroundColor string `json:"backgroundColor"`
}

// DefaultRecord returns the configuration used for absent values.
func DefaultRecord() Record {
	return Record{
		ServerName:      DefaultServerName,
		Theme:           DefaultTheme,
		Port:            InitialPort,
		EnableFog:       DefaultEnableFog,
		BackgroundColor: DefaultBackgroundColor,
	}
}

// Form is a configuration as submitted: every field a string, exactly as it
// is persisted.
type Form struct {
	ServerName      string `json:"serverName"`
	Theme           string `json:"theme"`
	Port            string `json:"port"`
	EnableFog       string `json:"enableFog"`
	BackgroundColor string `json:"backgroundColor"`
}

// ParseForm validates every field of f and converts it to a Record. All field
// errors are returned joined; each matches ErrInvalidRecord.
func ParseForm(f Form) (Record, error) {
	var (
		rec  Record
		errs []error
	)

	rec.ServerName = f.ServerName
	if err := validateServerName(f.ServerName); err != nil {
		errs = append(errs, err)
	}

	rec.Theme = Theme(f.Theme)
	if err := validateTheme(rec.Theme); err != nil {
		errs = append(errs, err)
	}

	port, err := ParsePort(f.Port)
	if err != nil {
		errs = append(errs, &FieldError{Field: KeyPort, Value: f.Port, Err: err})
	}
	rec.Port = port

	switch f.EnableFog {
	case "true":
		rec.EnableFog = true
	case "false":
		rec.EnableFog = false
	default:
		errs = append(errs, &FieldError{Field: KeyEnableFog, Value: f.EnableFog, Err: errors.New("must be true or false")})
	}

	rec.BackgroundColor = f.BackgroundColor
	if err := validateBackground(f.BackgroundColor); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return Record{}, errors.Join(errs...)
	}
	return rec, nil
}

// Validate checks every field constraint.
func (r Record) Validate() error {
	var errs []error
	if err := validateServerName(r.ServerName); err != nil {
		errs = append(errs, err)
	}
	if err := validateTheme(r.Theme); err != nil {
		errs = append(errs, err)
	}
	if r.Port < MinPort || r.Port > MaxPort {
		errs = append(errs, &FieldError{
			Field: KeyPort,
			Value: strconv.Itoa(r.Port),
			Err:   &PortError{Value: strconv.Itoa(r.Port), Err: errPortRange},
		})
	}
	if err := validateBackground(r.BackgroundColor); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Form renders r as persisted strings.
func (r Record) Form() Form {
	return Form{
		ServerName:      r.ServerName,
		Theme:           string(r.Theme),
		Port:            strconv.Itoa(r.Port),
		EnableFog:       strconv.FormatBool(r.EnableFog),
		BackgroundColor: r.BackgroundColor,
	}
}

// KeyValues returns r as ordered store entries.
func (r Record) KeyValues() []store.KeyValue {
	f := r.Form()
	return []store.KeyValue{
		{Key: KeyServerName, Value: f.ServerName},
		{Key: KeyTheme, Value: f.Theme},
		{Key: KeyPort, Value: f.Port},
		{Key: KeyEnableFog, Value: f.EnableFog},
		{Key: KeyBackgroundColor, Value: f.BackgroundColor},
	}
}

// ParsePort parses a port string. Surrounding whitespace is ignored. The
// result must lie in [MinPort, MaxPort].
func ParsePort(raw string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, &PortError{Value: raw, Err: err}
	}
	if port < MinPort || port > MaxPort {
		return 0, &PortError{Value: raw, Err: errPortRange}
	}
	return port, nil
}

var errPortRange = fmt.Errorf("out of range %d-%d", MinPort, MaxPort)

func validateServerName(name string) error {
	if utf8.RuneCountInString(name) > MaxServerNameLen {
		return &FieldError{Field: KeyServerName, Value: name, Err: fmt.Errorf("longer than %d characters", MaxServerNameLen)}
	}
	if strings.IndexFunc(name, unicode.IsControl) >= 0 {
		return &FieldError{Field: KeyServerName, Value: name, Err: errors.New("contains control characters")}
	}
	return nil
}

func validateTheme(t Theme) error {
	if t != ThemeLight && t != ThemeDark {
		return &FieldError{Field: KeyTheme, Value: string(t), Err: errors.New("must be light or dark")}
	}
	return nil
}

func validateBackground(c string) error {
	if !backgroundPattern.MatchString(c) {
		return &FieldError{Field: KeyBackgroundColor, Value: c, Err: errors.New("must be default, #RGB or #RRGGBB")}
	}
	return nil
}
