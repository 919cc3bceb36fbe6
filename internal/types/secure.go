package types

import "log/slog"

// redacted is the placeholder substituted for secret values in logs and
// serialized output.
const redacted = "***REDACTED***"

// SecretString holds a sensitive value (DSN, API key) and prevents it from
// leaking through fmt, JSON, or slog output. Call Unmask only at the point
// the raw value is genuinely required, e.g. building an Authorization header
// or opening a database pool.
type SecretString string

// String returns the redacted placeholder. Invoked by fmt via the Stringer
// interface.
func (s SecretString) String() string {
	return redacted
}

// MarshalJSON returns the redacted placeholder as a JSON string so config
// dumps and structured payloads never carry the raw value.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// LogValue implements slog.LogValuer so secrets logged as attributes are
// redacted as well.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

// Unmask returns the raw plaintext value.
func (s SecretString) Unmask() string {
	return string(s)
}
