package hook

import (
	"errors"
	"testing"
)

func TestCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int32
	}{
		{"nil", nil, 0},
		{"oom", newErr("op", KindOutOfMemory, nil), -2},
		{"unsafe", newErr("op", KindUnsafePrologue, nil), -3},
		{"unknown", newErr("op", KindUnknown, nil), -1},
		{"plain", errors.New("boom"), -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := CodeOf(c.err); got != c.want {
				t.Errorf("CodeOf(%v) = %d, want %d", c.err, got, c.want)
			}
		})
	}
}

func TestErrorIsSentinel(t *testing.T) {
	err := newErr("NewRecord", KindUnsafePrologue, errors.New("RET in prologue"))
	if !errors.Is(err, ErrUnsafePrologue) {
		t.Fatal("expected errors.Is to match ErrUnsafePrologue")
	}
	if errors.Is(err, ErrOutOfMemory) {
		t.Fatal("did not expect errors.Is to match ErrOutOfMemory")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := newErr("op", KindDecoderFailed, cause)
	if errors.Unwrap(err) != cause {
		t.Fatal("expected Unwrap to return the cause")
	}
}
