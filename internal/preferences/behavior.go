package preferences

import "slices"

// Behavior setting keys.
const (
	KeyDeliveryMode   = "delivery_mode"
	KeyAntiRepeat     = "anti_repeat"
	KeyStrictSkip     = "strict_skip"
	KeyProtectContent = "protect_content"
)

// DeliveryMode selects how a record reaches the requester.
type DeliveryMode string

const (
	DeliveryCopy    DeliveryMode = "copy"
	DeliveryForward DeliveryMode = "forward"
)

const (
	valueOn  = "on"
	valueOff = "off"
)

type settingDef struct {
	values   []string
	fallback string
}

// behaviorSettings is the closed enumeration of scope settings with their defaults.
var behaviorSettings = map[string]settingDef{
	KeyDeliveryMode:   {values: []string{string(DeliveryCopy), string(DeliveryForward)}, fallback: string(DeliveryCopy)},
	KeyAntiRepeat:     {values: []string{valueOn, valueOff}, fallback: valueOn},
	KeyStrictSkip:     {values: []string{valueOn, valueOff}, fallback: valueOff},
	KeyProtectContent: {values: []string{valueOn, valueOff}, fallback: valueOff},
}

// BehaviorKeys lists every known setting key in a stable order.
var BehaviorKeys = []string{KeyDeliveryMode, KeyAntiRepeat, KeyStrictSkip, KeyProtectContent}

// SettingValues returns the allowed values of key, or nil for an unknown key.
func SettingValues(key string) []string {
	def, ok := behaviorSettings[key]
	if !ok {
		return nil
	}
	return slices.Clone(def.values)
}

// Behavior is the typed view of a scope's settings.
type Behavior struct {
	DeliveryMode   DeliveryMode
	AntiRepeat     bool
	StrictSkip     bool
	ProtectContent bool
}

// DefaultBehavior is what a scope without stored settings gets.
func DefaultBehavior() Behavior {
	return behaviorFromMap(nil)
}

func behaviorFromMap(values map[string]string) Behavior {
	get := func(key string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return behaviorSettings[key].fallback
	}
	return Behavior{
		DeliveryMode:   DeliveryMode(get(KeyDeliveryMode)),
		AntiRepeat:     get(KeyAntiRepeat) == valueOn,
		StrictSkip:     get(KeyStrictSkip) == valueOn,
		ProtectContent: get(KeyProtectContent) == valueOn,
	}
}

func validSetting(key, value string) bool {
	def, ok := behaviorSettings[key]
	if !ok {
		return false
	}
	return validate.Var(value, "required,"+oneOf(def.values)) == nil
}
