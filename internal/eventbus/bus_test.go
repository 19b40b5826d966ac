package eventbus

import (
	"errors"
	"testing"
)

func TestFireRegistrationOrder(t *testing.T) {
	b := New()
	var order []int

	b.On("evt", func(info map[string]any) error {
		order = append(order, 1)
		return nil
	})
	b.On("evt", func(info map[string]any) error {
		order = append(order, 2)
		return nil
	})

	b.Fire("evt", map[string]any{})

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("got order=%v, want [1 2]", order)
	}
}

func TestFireMutatesSharedInfo(t *testing.T) {
	b := New()
	b.On("evt", func(info map[string]any) error {
		info["allow"] = false
		return nil
	})

	var sawAllow any
	b.On("evt", func(info map[string]any) error {
		sawAllow = info["allow"]
		return nil
	})

	b.Fire("evt", map[string]any{"allow": true})

	if sawAllow != false {
		t.Fatalf("got allow=%v, want false", sawAllow)
	}
}

func TestFireHandlerErrorDoesNotStopChain(t *testing.T) {
	b := New()
	ran := false
	b.On("evt", func(info map[string]any) error {
		return errors.New("boom")
	})
	b.On("evt", func(info map[string]any) error {
		ran = true
		return nil
	})

	b.Fire("evt", map[string]any{})

	if !ran {
		t.Fatal("second handler did not run after first handler errored")
	}
}

func TestOff(t *testing.T) {
	b := New()
	ran := false
	b.On("evt", func(info map[string]any) error {
		ran = true
		return nil
	})
	b.Off("evt")
	b.Fire("evt", map[string]any{})

	if ran {
		t.Fatal("handler ran after Off")
	}
}

func TestFiniIdempotent(t *testing.T) {
	b := New()
	count := 0
	b.OnFini(func() { count++ })

	b.Fini()
	b.Fini()

	if count != 1 {
		t.Fatalf("got %d fini calls, want 1", count)
	}
	if !b.IsFini() {
		t.Fatal("IsFini false after Fini")
	}
}
