package services

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestValidateStructReportsJSONFieldNames(t *testing.T) {
	in := SubmitReportInput{VulnType: "xss", Title: "ok title", Description: "short", PoC: "0123456789", Severity: 3}
	err := ValidateStruct(in)

	var se *Error
	if !errors.As(err, &se) || se.Kind != KindValidation {
		t.Fatalf("err = %v, want validation error", err)
	}
	want := []FieldIssue{
		{Field: "bounty_id", Rule: "required", Message: "bounty_id is required"},
		{Field: "description", Rule: "min", Message: "description must be at least 50 characters"},
	}
	if diff := cmp.Diff(want, se.Issues); diff != "" {
		t.Errorf("issues mismatch (-want +got):\n%s", diff)
	}
}

func TestCleaners(t *testing.T) {
	cases := []struct {
		name string
		fn   func(string) string
		in   string
		want string
	}{
		{"line strips tags", cleanLine, " <b>Bold</b> & co ", "Bold & co"},
		{"line drops scripts", cleanLine, "title<script>x()</script>", "title"},
		{"line strips encoded script", cleanLine, "&lt;script&gt;alert(1)&lt;/script&gt; title", "title"},
		{"line strips encoded img", cleanLine, "&lt;img src=x onerror=alert(1)&gt;", ""},
		{"line strips double encoded", cleanLine, "&amp;lt;b&amp;gt;Bold&amp;lt;/b&amp;gt;", "Bold"},
		{"line keeps plain entities", cleanLine, "Tom &amp; Jerry", "Tom & Jerry"},
		{"prose keeps paragraphs", cleanProse, "<p>hi</p><img src=x onerror=y>", "<p>hi</p>"},
		{"text only normalises", cleanText, "  <b>é</b>  ", "<b>é</b>"},
	}
	for _, tc := range cases {
		if got := tc.fn(tc.in); got != tc.want {
			t.Errorf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestErrorIsMatchesKindAndMessage(t *testing.T) {
	wrapped := Conflict("job is no longer available")
	if !errors.Is(wrapped, ErrJobUnavailable) {
		t.Error("equal kind and message should match")
	}
	if errors.Is(Forbidden("job is no longer available"), ErrJobUnavailable) {
		t.Error("different kinds must not match")
	}
	if KindOf(errors.New("boom")) != KindInternal {
		t.Error("untyped errors are internal")
	}
}
