package diag

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Errors is an append-only diagnostics sink. It is safe for concurrent writers.
type Errors struct {
	mu   sync.Mutex
	errs []Diagnostic
}

func (r *Errors) With(err ...Diagnostic) *Errors {
	if r == nil {
		return &Errors{errs: slices.Clone(err)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err...)
	return r
}

func (r *Errors) Merge(err *Errors) *Errors {
	if r == nil {
		return err
	}
	if err == nil || r == err {
		return r
	}
	return r.With(err.Errors()...)
}

// Errors returns a snapshot of the diagnostics reported so far, in report order
func (r *Errors) Errors() []Diagnostic {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.errs)
}

func (r *Errors) Len() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errs)
}

// HasError reports whether any diagnostic of SeverityError was reported.
// Warnings alone do not count.
func (r *Errors) HasError() bool {
	for _, d := range r.Errors() {
		if d.Code().Severity() == SeverityError {
			return true
		}
	}
	return false
}

func (r *Errors) LogValue() slog.Value {
	var vals []slog.Attr
	for i, v := range r.Errors() {
		vals = append(vals, slog.Attr{
			Key: fmt.Sprint("e", i),
			Value: slog.GroupValue(
				slog.Attr{
					Key:   "msg",
					Value: slog.StringValue(FormatWithCode(v)),
				},
				slog.String("at", v.At().String()),
			),
		})
	}
	return slog.GroupValue(vals...)
}
