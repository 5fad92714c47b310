package vdberrors

// LogAttrs returns a map of structured fields describing err, which the
// caller turns into slog attributes (e.g. one slog.Any per entry). A
// non-*Error yields a single "error" entry. Returns nil for a nil error.
func LogAttrs(err error) map[string]any {
	if err == nil {
		return nil
	}

	e, ok := err.(*Error)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	attrs := map[string]any{
		"error_code": e.Code,
		"error_kind": string(e.Kind),
		"message":    e.Message,
		"retryable":  e.Retryable,
	}
	if e.Cause != nil {
		attrs["cause"] = e.Cause.Error()
	}
	for k, v := range e.Details {
		attrs["detail_"+k] = v
	}
	return attrs
}
