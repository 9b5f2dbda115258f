package target

import (
	"errors"
	"testing"
)

func TestParseKnownKinds(t *testing.T) {
	testCases := []struct {
		raw  string
		want Ref
	}{
		{raw: "post", want: Post(3)},
		{raw: " Comment ", want: Comment(3)},
		{raw: "USER", want: User(3)},
		{raw: "", want: None()},
	}
	for _, testCase := range testCases {
		t.Run(testCase.raw, func(t *testing.T) {
			got, err := Parse(testCase.raw, 3)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if testCase.want.IsNone() {
				if !got.IsNone() {
					t.Fatalf("expected none, got %s", got)
				}
				return
			}
			if got != testCase.want {
				t.Fatalf("expected %s, got %s", testCase.want, got)
			}
		})
	}
}

func TestParseRejectsUnknownKind(t *testing.T) {
	if _, err := Parse("bookmark", 1); !errors.Is(err, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", err)
	}
}
