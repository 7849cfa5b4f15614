package redis

import "strings"

const defaultNamespace = "ms"

// keyspace prefixes every key so several environments can share one server.
type keyspace string

func (k keyspace) join(kind string, parts ...string) string {
	var b strings.Builder
	b.WriteString(string(k))
	b.WriteByte(':')
	b.WriteString(kind)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

func (k keyspace) IdempotencyKey(scope, id string) string {
	return k.join("idempotency", scope, id)
}

func (k keyspace) RateLimitKey(scope string) string {
	return k.join("rate_limit", scope)
}

func (k keyspace) LockKey(scope, id string) string {
	return k.join("lock", scope, id)
}

func (k keyspace) AccessSessionKey(accessID string) string {
	return k.join("session", "access", accessID)
}
