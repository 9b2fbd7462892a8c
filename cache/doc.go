// Package cache runs cache-aside reads over a byte oriented Store and builds
// deterministic keys for them.
//
// # Overview
//
// The package exports three pieces:
//
//   - Service: reads an entry, or calls a fetch function on a miss and writes its result
//   - KeySerializer: builds stable cache keys from method names and arguments
//   - Store: the backend contract implemented by the in-process and Redis stores
//
// # Basic Usage
//
//	serializer := cache.NewDefaultKeySerializer()
//	key := serializer.SerializeKey("ListRecords", params, token)
//
//	page, err := cache.GetOrFetch(ctx, service, key, func(ctx context.Context) ([]catalog.Record, error) {
//		return executor.Execute(ctx, params, cur)
//	})
//
// # Key Serialization Strategy
//
// Keys have the form namespace::method::digest. The digest is the SHA-256 of
// a canonical rendering of the arguments, base64url encoded without padding:
//
//   - Strings are quoted, so separators inside values cannot shift segments
//   - Structs list exported fields sorted by name
//   - Maps list pairs sorted by serialized key
//   - Slices and arrays keep element order
//   - Types implementing encoding.TextMarshaler (time.Time) use their text form
//   - Anything else falls back to JSON
//
// Function values are rendered by address and only stable within one process.
// Keys built from them must not be shared through a distributed store.
//
// # Failure Handling
//
// Store errors wrap ErrUnavailable. Service logs them and carries on: a failed
// read counts as a miss and a failed write is dropped. Errors returned by the
// fetch function reach the caller unchanged and are never cached.
package cache
