// Package runtime is the symbolic catalog of named entry points the
// emitter calls. The catalog is a contract, not a library: it carries
// names, arities, and a one-line effect description, never an
// implementation. The embedded runtime library backing the entries
// (Promise/JSON/Map/Set/Path/DNS/crypto/HTTP) lives with the host.
package runtime

// Arity describes how many values an entry point consumes/produces. Most
// entries are fixed-arity; a few (CreateArray, InvokeValue) are variadic.
type Arity struct {
	Fixed    int
	Variadic bool
}

// Signature describes one RuntimeCatalog entry: enough for internal/emit
// and internal/asyncx to validate a call site without ever needing the
// entry's actual implementation.
type Signature struct {
	Name   string
	In     Arity
	Effect string
}

// Catalog is the queryable registry. It is populated once (by Default) and
// treated as read-only afterward; internal/emit and internal/asyncx look
// entries up by name instead of hardcoding arities inline.
type Catalog struct {
	entries map[string]Signature
}

// Lookup returns the signature for name and whether it was found.
func (c *Catalog) Lookup(name string) (Signature, bool) {
	s, ok := c.entries[name]
	return s, ok
}

// MustLookup panics if name isn't in the catalog — used at emission time
// where an unknown entry point name is a compiler bug, not a user error
// (the set of names the emitter ever requests is fixed at compile time of
// the compiler itself).
func (c *Catalog) MustLookup(name string) Signature {
	s, ok := c.entries[name]
	if !ok {
		panic("runtime: unknown catalog entry " + name)
	}
	return s
}

func reg(c *Catalog, name string, fixed int, variadic bool, effect string) {
	c.entries[name] = Signature{Name: name, In: Arity{Fixed: fixed, Variadic: variadic}, Effect: effect}
}

// Default builds the catalog of essential entry points, plus the per-type
// method batteries the emitter's name-based fallback dispatch requires to
// exist by name even though their bodies live in the runtime library.
func Default() *Catalog {
	c := &Catalog{entries: make(map[string]Signature)}

	reg(c, "ConsoleLog", 0, true, "console.log built-in special form: stringify and write each argument to stdout")
	reg(c, "Add", 2, false, "mixed-type `+`: string concat or numeric add at runtime")
	reg(c, "Equals", 2, false, "`==`/`!=` runtime equality")
	reg(c, "StrictEquals", 2, false, "`===`/`!==` identity-aware equality (null != undefined)")
	reg(c, "TypeOf", 1, false, "`typeof` operand classification")
	reg(c, "InstanceOf", 2, false, "`instanceof` against a runtime class reference")
	reg(c, "GetProperty", 2, false, "dynamic property read, returns null on miss")
	reg(c, "SetProperty", 3, false, "dynamic property write")
	reg(c, "GetIndex", 2, false, "string/list/dict/symbol-keyed index read")
	reg(c, "SetIndex", 3, false, "string/list/dict/symbol-keyed index write")
	reg(c, "InvokeValue", 0, true, "indirect call through the opaque callable abstraction")
	reg(c, "CreateObject", 0, true, "construct a dynamic property bag")
	reg(c, "CreateArray", 0, true, "construct a dynamic array")
	reg(c, "Stringify", 1, false, "JSON.stringify-compatible serialization")
	reg(c, "ParseJSON", 1, false, "JSON.parse-compatible deserialization")
	reg(c, "ToNumber", 1, false, "ECMA ToNumber coercion (undefined -> NaN)")
	reg(c, "WrapException", 1, false, "attach the sentinel wrapped-value marker at `throw` time")
	reg(c, "UnwrapException", 1, false, "recover the original thrown value if wrapped, else the message string")
	reg(c, "GetSuperMethod", 2, false, "resolve a `super.foo` dispatch")
	reg(c, "AwaitTaskSync", 1, false, "top-level await: block until a task completes and return its result; non-task values pass through")
	reg(c, "StartAsyncStateMachine", 1, false, "drive a freshly constructed async state object's move_next once and return the Promise a caller awaits")
	reg(c, "StartGeneratorStateMachine", 1, false, "wrap a freshly constructed generator state object in the iterator protocol, without driving move_next yet")

	reg(c, "PromiseThen", 3, false, "Promise#then(onFulfilled, onRejected)")
	reg(c, "PromiseCatch", 2, false, "Promise#catch(onRejected)")
	reg(c, "PromiseFinally", 2, false, "Promise#finally(onFinally)")
	reg(c, "PromiseAll", 1, false, "Promise.all")
	reg(c, "PromiseAny", 1, false, "Promise.any, rejects with AggregateError")
	reg(c, "PromiseRace", 1, false, "Promise.race")
	reg(c, "PromiseAllSettled", 1, false, "Promise.allSettled")
	reg(c, "PromiseResolve", 1, false, "Promise.resolve / already-fulfilled awaiter")
	reg(c, "PromiseReject", 1, false, "Promise.reject / already-rejected awaiter")

	reg(c, "BigIntAdd", 2, false, "bigint +")
	reg(c, "BigIntSub", 2, false, "bigint -")
	reg(c, "BigIntMul", 2, false, "bigint *")
	reg(c, "BigIntDiv", 2, false, "bigint /")
	reg(c, "BigIntBAnd", 2, false, "bigint &")
	reg(c, "BigIntBOr", 2, false, "bigint |")
	reg(c, "BigIntBXor", 2, false, "bigint ^")

	reg(c, "StringIncludes", 2, false, "String#includes")
	reg(c, "StringIndexOf", 2, false, "String#indexOf")
	reg(c, "StringSlice", 3, false, "String#slice")
	reg(c, "StringConcat", 0, true, "String#concat")
	reg(c, "ArrayMap", 2, false, "Array#map")
	reg(c, "ArraySlice", 3, false, "Array#slice")
	reg(c, "ArrayConcat", 0, true, "Array#concat")
	reg(c, "ArrayIncludes", 2, false, "Array#includes")
	reg(c, "ArrayIndexOf", 2, false, "Array#indexOf")

	return c
}
