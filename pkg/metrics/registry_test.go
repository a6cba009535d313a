package metrics

import "testing"

func TestInitRegistry_EnablesMetrics(t *testing.T) {
	Disable()
	if IsEnabled() {
		t.Fatal("expected metrics disabled before InitRegistry")
	}

	reg := InitRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}
	if !IsEnabled() {
		t.Error("expected metrics enabled after InitRegistry")
	}

	Disable()
}

func TestDisable_TurnsOffMetrics(t *testing.T) {
	InitRegistry()
	Disable()

	if IsEnabled() {
		t.Error("expected metrics disabled after Disable")
	}
}

func TestGetRegistry_PanicsWhenNotInitialized(t *testing.T) {
	Disable()

	defer func() {
		if r := recover(); r == nil {
			t.Error("expected GetRegistry to panic before InitRegistry")
		}
	}()

	GetRegistry()
}
