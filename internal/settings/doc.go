// Package settings stores small per-instance state records.
//
// Records are byte blobs addressed by slash-separated keys such as
// "attr_cycle/backlight". A Store saves one record at a time and, at
// startup, enumerates every record under a prefix, handing each to a
// Handler together with a read callback:
//
//	err := store.Load(ctx, "attr_cycle", func(suffix string, length int, read func([]byte) (int, error)) error {
//	    buf := make([]byte, length)
//	    n, err := read(buf)
//	    ...
//	})
//
// Three backends are provided: SQLite (the default, via the database
// package), Redis and an in-memory store for tests and ephemeral setups.
package settings
