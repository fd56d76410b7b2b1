// Package store persists SLD templates, their rule hierarchy and user
// configs in PostgreSQL.
//
// Every operation runs inside a [UnitOfWork], a thin wrapper over a pgx
// transaction that is closed by exactly one Commit or Rollback. [Run] is the
// only place that opens and finishes units; callers hand it a function and
// get either a committed result or a fully rolled back database.
//
// # Components
//
//   - [Catalog] resolves parameter types by symbolizer key (find-or-create).
//   - [Loader] walks flat lines and inserts feature types, rules and params
//     beneath a new template, threading a [ScanState] from line to line.
//   - [Replacer] swaps a config's complete value set.
//   - Read queries ([GetTemplate], [ListTemplates], [GetFeatureTypes],
//     [GetConfigOwner] and friends) run inside any unit of work.
//
// [Store] composes them into one call per business operation.
//
// # Ingest Flow
//
//  1. Insert the template row.
//  2. For each line, in order: FeatureType attaches to the template, Rule to
//     the current feature type, Field to the current rule after its type is
//     resolved through the catalog.
//  3. Commit, or roll back and return a [*LineError] naming the 1-based line.
//
// A Rule before any FeatureType fails with [*OrphanRuleError]; a Field before
// any Rule fails with [*OrphanFieldError].
//
// # Catalog Races
//
// param_types carries no unique constraint on symbolizer. With
// [LockingNone], two transactions ingesting a new key at the same time may
// both insert it; lookups always pick the lowest id, so later ingests
// converge. [LockingAdvisory] takes pg_advisory_xact_lock on the key first
// and never creates duplicates.
//
// # Errors
//
// Failures are typed: [*ConnectionError] (begin), [*StatementError] (any
// statement, including COMMIT), [ErrNotFound], [ErrClosed], the orphan
// errors, and the context wrappers [*LineError] and [*ValueError]. Use
// errors.Is and errors.As; the original database error stays reachable.
package store
