package apperr

import (
	"encoding/json"

	"github.com/cockroachdb/errors"
)

// Builder assembles an error fluently. Mark must be the last call.
type Builder struct {
	err error
}

// NewError starts a chain from a new cause.
func NewError(msg string) *Builder {
	return &Builder{err: errors.New(msg)}
}

// WithError starts a chain from an existing error.
func WithError(err error) *Builder {
	return &Builder{err: err}
}

// WithMessage adds internal context (not shown to clients).
func (b *Builder) WithMessage(msg string) *Builder {
	b.err = errors.WithMessage(b.err, msg)
	return b
}

// WithHint sets the client-facing message.
func (b *Builder) WithHint(hint string) *Builder {
	b.err = errors.WithHint(b.err, hint)
	return b
}

// WithHintf is WithHint with formatting.
func (b *Builder) WithHintf(format string, args ...any) *Builder {
	b.err = errors.WithHintf(b.err, format, args...)
	return b
}

// WithDetails attaches structured details that are safe to return to clients.
func (b *Builder) WithDetails(details map[string]any) *Builder {
	raw, err := json.Marshal(details)
	if err != nil {
		return b
	}
	b.err = errors.WithSafeDetails(b.err, detailsPrefix+"%s", errors.Safe(string(raw)))
	return b
}

// Mark tags the error with a sentinel and returns it.
func (b *Builder) Mark(k *Kind) error {
	b.err = errors.Mark(b.err, k)
	return b.err
}

const detailsPrefix = "__json__:"

// Details collects the structured details attached with WithDetails.
func Details(err error) map[string]any {
	out := map[string]any{}
	for _, payload := range errors.GetAllSafeDetails(err) {
		for _, d := range payload.SafeDetails {
			if len(d) <= len(detailsPrefix) || d[:len(detailsPrefix)] != detailsPrefix {
				continue
			}
			var m map[string]any
			if json.Unmarshal([]byte(d[len(detailsPrefix):]), &m) == nil {
				for k, v := range m {
					out[k] = v
				}
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
