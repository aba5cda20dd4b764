package redis

import "strings"

// Every key lives under bk:<kind>:... so a shared Redis can be inspected or
// flushed per concern.
const (
	keyNamespace   = "bk"
	kindReplay     = "idempotency"
	kindRateWindow = "rate_limit"
	kindLease      = "lock"
)

func (c *Client) IdempotencyKey(scope, id string) string {
	return key(kindReplay, scope, id)
}

func (c *Client) RateLimitKey(scope string) string {
	return key(kindRateWindow, scope)
}

func (c *Client) LockKey(name string) string {
	return key(kindLease, name)
}

func key(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(keyNamespace)
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			b.WriteByte(':')
			b.WriteString(p)
		}
	}
	return b.String()
}
