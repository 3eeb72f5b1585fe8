package reflector

import (
	"reflect"
	"sync"
	"testing"
)

type testStruct struct {
	Name    string
	Done    bool
	private int
	Count   int
}

func TestTypeInfoOf(t *testing.T) {
	ti := TypeInfoOf(testStruct{})

	if ti.Name != "reflector.testStruct" {
		t.Errorf("unexpected Name: %s", ti.Name)
	}
	if ti.Type.Name() != "testStruct" {
		t.Errorf("unexpected Type.Name(): %s", ti.Type.Name())
	}
}

func TestTypeInfoOf_Pointer(t *testing.T) {
	ti := TypeInfoOf(&testStruct{})

	if ti.Name != "reflector.testStruct" {
		t.Errorf("unexpected Name for pointer: %s", ti.Name)
	}
	if ti.Type.Kind() == reflect.Pointer {
		t.Error("Type should be unwrapped from pointer")
	}
}

func TestTypeInfoFor_Fields(t *testing.T) {
	ti := TypeInfoFor[testStruct]()

	want := []string{"Name", "Done", "Count"}
	if !reflect.DeepEqual(ti.Fields, want) {
		t.Errorf("unexpected Fields: %v", ti.Fields)
	}

	if got := TypeInfoFor[int]().Fields; len(got) != 0 {
		t.Errorf("non-struct types have no fields, got %v", got)
	}
}

func TestTypeInfoOf_Builtin(t *testing.T) {
	if got := TypeInfoOf("x").Name; got != "string" {
		t.Errorf("unexpected Name: %s", got)
	}
	if got := TypeInfoOf(nil); got.Type != nil {
		t.Errorf("nil should yield empty TypeInfo, got %+v", got)
	}
}

func TestTypeInfo_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if TypeInfoFor[testStruct]().Name != "reflector.testStruct" {
				t.Error("unexpected name")
			}
		}()
	}
	wg.Wait()
}
