package driven

// ConfigStore holds settings under flat dotted keys such as
// "budget.tokens_per_minute". Typed getters return the zero value when a key
// is missing or holds another type; the settings service applies defaults.
type ConfigStore interface {
	// Get returns the raw value and whether the key is set.
	Get(key string) (any, bool)

	GetString(key string) string

	// GetInt accepts floats only when they hold a whole number.
	GetInt(key string) int

	// GetFloat widens integers.
	GetFloat(key string) float64

	GetBool(key string) bool

	// GetStringSlice returns nil unless the value is a list of strings.
	GetStringSlice(key string) []string

	// Set stores a value. File-backed stores persist it immediately and
	// roll back the in-memory value when the write fails.
	Set(key string, value any) error

	Save() error
	Load() error

	// Path is where the settings are persisted, ":memory:" for in-memory stores.
	Path() string
}
