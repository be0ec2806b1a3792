package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := ErrConflict.WrapMsg("edge exists", "subject", "alice")

	if !errors.Is(err, ErrConflict) {
		t.Fatal("wrapped conflict should match ErrConflict")
	}
	if errors.Is(err, ErrRecordNotFound) {
		t.Fatal("conflict must not match not-found")
	}
}

func TestWrapMsgAppendsDetail(t *testing.T) {
	err := ErrArgs.WrapMsg("bad input", "field", "id")
	msg := err.Error()
	if !strings.Contains(msg, "bad input") || !strings.Contains(msg, "field=id") {
		t.Fatalf("message = %q", msg)
	}
	// 原型不被污染
	if ErrArgs.Detail != "" {
		t.Fatalf("sentinel mutated: %q", ErrArgs.Detail)
	}
}

func TestUnwrapReachesCodeError(t *testing.T) {
	err := WrapMsg(ErrTokenInvalid.Wrap(), "during auth")
	inner := Unwrap(err)
	ce, ok := inner.(*CodeError)
	if !ok {
		t.Fatalf("innermost = %T", inner)
	}
	if ce.Code != TokenInvalidError {
		t.Fatalf("code = %d", ce.Code)
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
	if WrapMsg(nil, "ctx") != nil {
		t.Fatal("WrapMsg(nil) must be nil")
	}
}

func TestWithDetailAccumulates(t *testing.T) {
	e := NewCodeError(ArgsError, "args invalid")
	e2 := e.WithDetail("first")
	e3 := e2.WithDetail("second")
	if !strings.Contains(e3.Detail, "first") || !strings.Contains(e3.Detail, "second") {
		t.Fatalf("detail = %q", e3.Detail)
	}
}
