package context

// Credentials represent the authentication details for a specific Transbank service.
// The dispatcher passes them verbatim into client construction; only the
// upstream clients read individual keys.
type Credentials map[string]string

// Get returns the credential stored under key, or "" when absent.
func (c Credentials) Get(key string) string {
	if c == nil {
		return ""
	}
	return c[key]
}

// Has reports whether a non-empty value is stored under key.
func (c Credentials) Has(key string) bool {
	return c.Get(key) != ""
}

// Clone returns an independent copy so callers cannot mutate a bound client's credentials.
func (c Credentials) Clone() Credentials {
	if c == nil {
		return Credentials{}
	}
	out := make(Credentials, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Missing returns the keys from required that have no value.
func (c Credentials) Missing(required ...string) []string {
	var missing []string
	for _, key := range required {
		if !c.Has(key) {
			missing = append(missing, key)
		}
	}
	return missing
}
