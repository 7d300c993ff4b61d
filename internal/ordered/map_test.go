package ordered

import (
	"reflect"
	"testing"
)

func TestMap_InsertionOrder(t *testing.T) {
	m := New[string, int]()
	m.Set("Medan", 1)
	m.Set("Ambon", 2)
	m.Set("Denpasar", 3)
	m.Set("Medan", 10)

	want := []string{"Medan", "Ambon", "Denpasar"}
	if got := m.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := m.Get("Medan"); v != 10 {
		t.Errorf("Get(Medan) = %d, want 10 (last write wins)", v)
	}
	if got := m.Values(); !reflect.DeepEqual(got, []int{10, 2, 3}) {
		t.Errorf("Values() = %v", got)
	}
}

func TestMap_Delete(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	m.Set("b", 2)
	m.Set("c", 3)

	if !m.Delete("b") {
		t.Fatal("expected Delete(b) to report true")
	}
	if m.Delete("b") {
		t.Error("expected second Delete(b) to report false")
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Keys() = %v", got)
	}
	if m.Has("b") {
		t.Error("b still present")
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	m := New[string, int]()
	m.Set("a", 1)
	c := m.Clone()
	c.Set("b", 2)
	m.Clear()

	if m.Len() != 0 {
		t.Errorf("Len() after Clear = %d", m.Len())
	}
	if c.Len() != 2 {
		t.Errorf("clone Len() = %d, want 2", c.Len())
	}
}

func TestMap_EachStops(t *testing.T) {
	m := New[int, int]()
	for i := 0; i < 5; i++ {
		m.Set(i, i*i)
	}
	var seen []int
	m.Each(func(k, _ int) bool {
		seen = append(seen, k)
		return k < 2
	})
	if !reflect.DeepEqual(seen, []int{0, 1, 2}) {
		t.Errorf("seen = %v", seen)
	}
}

func TestMap_ZeroValueUsable(t *testing.T) {
	var m Map[string, string]
	m.Set("k", "v")
	if v, ok := m.Get("k"); !ok || v != "v" {
		t.Errorf("Get(k) = %q, %v", v, ok)
	}
}
