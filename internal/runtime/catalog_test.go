package runtime

import "testing"

func TestDefaultCatalogCarriesTheEssentialEntries(t *testing.T) {
	c := Default()
	for _, name := range []string{
		"Add", "Equals", "StrictEquals", "TypeOf", "InstanceOf",
		"GetProperty", "SetProperty", "GetIndex", "SetIndex",
		"InvokeValue", "CreateObject", "CreateArray", "Stringify",
		"WrapException", "GetSuperMethod",
		"PromiseThen", "PromiseCatch", "PromiseFinally",
		"PromiseAll", "PromiseAny", "PromiseRace", "PromiseAllSettled",
		"PromiseResolve", "PromiseReject",
		"AwaitTaskSync", "StartAsyncStateMachine", "StartGeneratorStateMachine",
	} {
		if _, ok := c.Lookup(name); !ok {
			t.Fatalf("catalog is missing %q", name)
		}
	}
}

func TestVariadicEntriesAreMarked(t *testing.T) {
	c := Default()
	for name, wantVariadic := range map[string]bool{
		"InvokeValue": true,
		"CreateArray": true,
		"ConsoleLog":  true,
		"Add":         false,
		"TypeOf":      false,
	} {
		sig, ok := c.Lookup(name)
		if !ok {
			t.Fatalf("missing %q", name)
		}
		if sig.In.Variadic != wantVariadic {
			t.Fatalf("%q variadic = %v, want %v", name, sig.In.Variadic, wantVariadic)
		}
	}
}

func TestMustLookupPanicsOnUnknownEntry(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("an unknown entry point is a compiler bug and must panic")
		}
	}()
	Default().MustLookup("NoSuchEntry")
}
