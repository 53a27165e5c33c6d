package sesslib

import (
	"sync"
	"testing"
)

func TestVMap_GetOrSetCreatesOnce(t *testing.T) {
	vm := NewVMap[string, int]()
	var calls int
	val, created := vm.GetOrSet("a", func() int {
		calls++
		return 42
	})
	if !created || val != 42 {
		t.Fatalf("first GetOrSet = (%d, %v)", val, created)
	}
	val, created = vm.GetOrSet("a", func() int {
		calls++
		return 99
	})
	if created || val != 42 {
		t.Fatalf("second GetOrSet = (%d, %v)", val, created)
	}
	if calls != 1 {
		t.Fatalf("factory called %d times, want 1", calls)
	}
}

func TestVMap_GetOrSetConcurrent(t *testing.T) {
	vm := NewVMap[string, *int]()
	var wg sync.WaitGroup
	var createdCount sync.Map

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, created := vm.GetOrSet("key", func() *int {
				n := 7
				return &n
			})
			if v == nil {
				t.Error("nil value from GetOrSet")
			}
			if created {
				createdCount.Store(created, true)
			}
		}()
	}
	wg.Wait()

	if vm.Len() != 1 {
		t.Fatalf("map has %d entries, want 1", vm.Len())
	}
}

func TestVMap_Basics(t *testing.T) {
	vm := NewVMap[string, string]()
	vm.Set("k", "v")
	if !vm.Has("k") {
		t.Fatal("Has(k) = false after Set")
	}
	if v, ok := vm.Get("k"); !ok || v != "v" {
		t.Fatalf("Get(k) = (%q, %v)", v, ok)
	}
	vm.Delete("k")
	if vm.Has("k") || vm.Len() != 0 {
		t.Fatal("Delete left the entry behind")
	}
}
