// Package preferences holds per-user filters and per-scope behavior settings.
// Stored values are never trusted: every read is normalized against the closed
// enumerations below and malformed input falls back to defaults.
package preferences

import (
	"fmt"
	"strconv"
	"strings"

	"mediapool-bot/internal/database/models"

	"github.com/go-playground/validator/v10"
)

// DateLayout is the format of custom date bounds.
const DateLayout = "2006-01-02"

const (
	FieldMediaType    = "media_type"
	FieldDateMode     = "date_mode"
	FieldDateFrom     = "date_from"
	FieldDateTo       = "date_to"
	FieldDurationMode = "duration_mode"
	FieldDurationMax  = "duration_max"
)

const (
	ModeAll    = "all"
	ModeCustom = "custom"
)

// Allowed enum values per filter field.
var (
	MediaTypes    = []string{ModeAll, "photo", "video", "animation"}
	DateModes     = []string{ModeAll, "today", "d7", "d30", "year", ModeCustom}
	DurationModes = []string{ModeAll, "s30", "s60", "s120", "s300", ModeCustom}
)

// DurationPresets maps the preset duration modes to their ceiling in seconds.
var DurationPresets = map[string]int{
	"s30":  30,
	"s60":  60,
	"s120": 120,
	"s300": 300,
}

// Filter is a normalized filter. Bounds and DurationMax are empty unless their
// mode is custom.
type Filter struct {
	MediaType    string
	DateMode     string
	DateFrom     string
	DateTo       string
	DurationMode string
	DurationMax  string
}

// DefaultFilter matches everything.
func DefaultFilter() Filter {
	return Filter{MediaType: ModeAll, DateMode: ModeAll, DurationMode: ModeAll}
}

// IsActive reports whether any field differs from its default.
func IsActive(f Filter) bool {
	return f != DefaultFilter()
}

// MaxDuration resolves the duration ceiling, or nil when no ceiling applies.
func (f Filter) MaxDuration() *int {
	if v, ok := DurationPresets[f.DurationMode]; ok {
		return &v
	}
	if f.DurationMode == ModeCustom {
		if v, err := strconv.Atoi(f.DurationMax); err == nil {
			return &v
		}
	}
	return nil
}

var validate = validator.New()

func oneOf(values []string) string {
	return "oneof=" + strings.Join(values, " ")
}

func validDate(value string) bool {
	return value != "" && validate.Var(value, "datetime="+DateLayout) == nil
}

func validDuration(value string) bool {
	if value == "" || validate.Var(value, "number") != nil {
		return false
	}
	_, err := strconv.Atoi(value)
	return err == nil
}

// validEnum reports whether value is allowed for an enum field.
func validEnum(field, value string) bool {
	var allowed []string
	switch field {
	case FieldMediaType:
		allowed = MediaTypes
	case FieldDateMode:
		allowed = DateModes
	case FieldDurationMode:
		allowed = DurationModes
	default:
		return false
	}
	return validate.Var(value, "required,"+oneOf(allowed)) == nil
}

// sanitizeField returns value if it is acceptable for field, or the field's default.
func sanitizeField(field, value string) (string, error) {
	switch field {
	case FieldMediaType, FieldDateMode, FieldDurationMode:
		if validEnum(field, value) {
			return value, nil
		}
		return ModeAll, nil
	case FieldDateFrom, FieldDateTo:
		if validDate(value) {
			return value, nil
		}
		return "", nil
	case FieldDurationMax:
		if validDuration(value) {
			return value, nil
		}
		return "", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFilterField, field)
	}
}

// Normalize merges stored values over the defaults and repairs anything malformed.
func Normalize(stored *models.FilterPreference) Filter {
	f := DefaultFilter()
	if stored == nil {
		return f
	}

	if validEnum(FieldMediaType, stored.MediaType) {
		f.MediaType = stored.MediaType
	}
	if validEnum(FieldDateMode, stored.DateMode) {
		f.DateMode = stored.DateMode
	}
	if validEnum(FieldDurationMode, stored.DurationMode) {
		f.DurationMode = stored.DurationMode
	}

	if f.DateMode == ModeCustom {
		from, to := stored.DateFrom, stored.DateTo
		// YYYY-MM-DD compares lexically in date order
		if validDate(from) && validDate(to) && from <= to {
			f.DateFrom, f.DateTo = from, to
		} else {
			f.DateMode = ModeAll
		}
	}

	if f.DurationMode == ModeCustom {
		if validDuration(stored.DurationMax) {
			f.DurationMax = stored.DurationMax
		} else {
			f.DurationMode = ModeAll
		}
	}
	return f
}
