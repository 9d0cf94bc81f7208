package di

import (
	"sync"
	"sync/atomic"
	"testing"
)

type greeter interface{ Greet() string }

type english struct{ name string }

func (e english) Greet() string { return "hello " + e.name }

func TestContainer_RegisterAndGet(t *testing.T) {
	c := NewContainer()
	c.Register("name", "world")

	if !c.Has("name") {
		t.Fatal("expected name to be registered")
	}
	if got := c.Get("name").(string); got != "world" {
		t.Errorf("Get = %q", got)
	}
}

func TestRegisterToken_LazySingleton(t *testing.T) {
	c := NewContainer()
	c.Register("name", "gopher")

	var builds atomic.Int32
	tok := NewToken[greeter]("test:greeter")
	RegisterToken(c, tok, func(sr ServiceRegistry) greeter {
		builds.Add(1)
		return english{name: sr.Get("name").(string)}
	})

	if builds.Load() != 0 {
		t.Fatal("factory should not run before first Get")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := GetToken(c, tok).Greet(); got != "hello gopher" {
				t.Errorf("Greet = %q", got)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("factory ran %d times, want 1", builds.Load())
	}
}

func TestGetToken_NilInterfaceReturnsZero(t *testing.T) {
	c := NewContainer()
	tok := NewToken[greeter]("test:optional")
	RegisterToken(c, tok, func(ServiceRegistry) greeter { return nil })

	if got := GetToken(c, tok); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}

func TestContainer_GetUnknownPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown key")
		}
	}()
	NewContainer().Get("missing")
}
