package secrets

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const placeholder = "***REDACTED***"

// RedactCore wraps a zap core to scrub registered secret values from the
// message and string fields of every entry it writes.
type RedactCore struct {
	zapcore.Core
	mu      *sync.RWMutex
	secrets map[string]bool
}

// NewRedactCore creates a core that redacts known secret values.
func NewRedactCore(inner zapcore.Core) *RedactCore {
	return &RedactCore{
		Core:    inner,
		mu:      &sync.RWMutex{},
		secrets: make(map[string]bool),
	}
}

// AddSecret registers a value to be redacted from log output.
func (c *RedactCore) AddSecret(value string) {
	if value == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secrets[value] = true
}

// With redacts the context fields and shares the secret set with the parent
// so AddSecret on either is visible to both.
func (c *RedactCore) With(fields []zapcore.Field) zapcore.Core {
	return &RedactCore{
		Core:    c.Core.With(c.redactFields(fields)),
		mu:      c.mu,
		secrets: c.secrets,
	}
}

// Check registers this core, not the inner one, so Write sees the entry.
func (c *RedactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write redacts the entry message and fields before delegating.
func (c *RedactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	ent.Message = c.RedactString(ent.Message)
	return c.Core.Write(ent, c.redactFields(fields))
}

func (c *RedactCore) redactFields(fields []zapcore.Field) []zapcore.Field {
	c.mu.RLock()
	empty := len(c.secrets) == 0
	c.mu.RUnlock()
	if empty {
		return fields
	}

	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		switch f.Type {
		case zapcore.StringType:
			f.String = c.RedactString(f.String)
		case zapcore.ErrorType:
			if err, ok := f.Interface.(error); ok && err != nil {
				f = zap.String(f.Key, c.RedactString(err.Error()))
			}
		}
		out[i] = f
	}
	return out
}

// RedactString replaces any known secret values in a string with a placeholder.
func (c *RedactCore) RedactString(s string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for secret := range c.secrets {
		s = strings.ReplaceAll(s, secret, placeholder)
	}
	return s
}
