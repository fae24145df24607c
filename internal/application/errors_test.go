package application

import "testing"

func TestValidationError(t *testing.T) {
	t.Parallel()

	t.Run("nil receiver", func(t *testing.T) {
		t.Parallel()
		var err *ValidationError
		if err.Error() != "" || err.HasErrors() || err.Summary() != "" {
			t.Fatalf("expected a nil ValidationError to be empty")
		}
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{}
		if err.Error() != "validation failed" {
			t.Fatalf("expected generic message, got %q", err.Error())
		}
		if err.HasErrors() {
			t.Fatalf("expected no field errors")
		}
	})

	t.Run("merge keeps both sides", func(t *testing.T) {
		t.Parallel()
		err := &ValidationError{}
		err.add("school", "school is required")
		err.merge(&ValidationError{FieldErrors: map[string]string{"date": "date must use the YYYY-MM-DD format"}})
		err.merge(nil)
		err.merge(&ValidationError{})

		if len(err.FieldErrors) != 2 {
			t.Fatalf("expected 2 field errors, got %#v", err.FieldErrors)
		}
		if got := err.Summary(); got != "date must use the YYYY-MM-DD format; school is required" {
			t.Fatalf("unexpected summary %q", got)
		}
	})
}
