package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestBootError_Format(t *testing.T) {
	err := New(ErrCodeModuleLaunch, "launch", "starting api-layer", fmt.Errorf("exec failed"))
	want := "[3002] launch: starting api-layer (cause: exec failed)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBootError_FormatNoCause(t *testing.T) {
	err := New(ErrCodeConfigInvalid, "validate", "hold thresholds out of order", nil)
	want := "[1001] validate: hold thresholds out of order"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestBootError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("no such file")
	err := New(ErrCodeCatalogQuery, "images", "listing artifacts", cause)

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}

	var be *BootError
	if !stderrors.As(err, &be) {
		t.Fatal("errors.As should extract *BootError")
	}
	if be.Code != ErrCodeCatalogQuery {
		t.Errorf("Code = %d, want %d", be.Code, ErrCodeCatalogQuery)
	}
}
