package dberrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestConnectionWrapsSentinel(t *testing.T) {
	err := Connection(ErrNotConnected)
	if !errors.Is(err, ErrNotConnected) {
		t.Error("wrapped error should match ErrNotConnected")
	}
	if !IsConnection(err) {
		t.Error("IsConnection should report true")
	}
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		t.Error("errors.As should find ConnectionError")
	}
}

func TestNilErrorsStayNil(t *testing.T) {
	if Connection(nil) != nil {
		t.Error("Connection(nil) should be nil")
	}
	if Schema(nil) != nil {
		t.Error("Schema(nil) should be nil")
	}
	if Persistence("op", nil) != nil {
		t.Error("Persistence(op, nil) should be nil")
	}
}

func TestPersistenceCarriesOp(t *testing.T) {
	base := fmt.Errorf("boom")
	err := Persistence("save_score", base)

	var pe *PersistenceError
	if !errors.As(err, &pe) {
		t.Fatal("errors.As should find PersistenceError")
	}
	if pe.Op != "save_score" {
		t.Errorf("Op = %q, want save_score", pe.Op)
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match the base error")
	}
	if IsConnection(err) {
		t.Error("PersistenceError is not a ConnectionError")
	}
}

func TestSchemaError(t *testing.T) {
	base := errors.New("syntax error")
	err := Schema(base)
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatal("errors.As should find SchemaError")
	}
	if !errors.Is(err, base) {
		t.Error("wrapped error should match the base error")
	}
}
