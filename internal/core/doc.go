// Package core provides the business API for styled-layer templates and
// their configs.
//
// It sits between transport layers and [store.Store], adding the checks and
// limits the store leaves to callers. It can be used by web handlers, CLI
// tools, or tests without modification.
//
// # Ingest
//
// [Service.IngestTemplate] takes the template's raw content and its flat
// parser output as text:
//
//  1. The name and flat text are validated; [flatline.ParseString] decodes
//     the lines. Nothing touches the database if this fails.
//  2. An ingest slot is taken from the [IngestLimiter], waiting at most the
//     configured wait time before failing with [ErrTooManyIngests].
//  3. The store loads the whole hierarchy in one transaction bounded by the
//     ingest timeout. Any failure leaves no trace of the template.
//
// # Ownership
//
// A config's UUID is its ownership token, generated by [Service.CreateConfig]
// and returned once. Reading or replacing config values requires the token;
// a missing config and a wrong token fail with different errors
// ([ErrConfigNotFound], [ErrNotOwner]).
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has its own code range:
//
//   - DB001-DB007: database constraints, connectivity and conflicts
//   - ING001-ING007: flat template and ingest validation
//   - CFG001-CFG005: config lookup, ownership and values
//   - UPL002-UPL007: busy, cancelled, timed out, oversized or malformed requests
package core
