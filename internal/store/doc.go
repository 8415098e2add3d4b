// Package store provides SQLite-backed storage for the fuzzer's own data
// (fuzzer.db).
//
// Tables:
//   - messages: every activity sent or minted, keyed by GUID, append-only
//   - accounts: the operating account and mock accounts with their keys
//   - deliveries: one row per delivery attempt
//
// Messages are never updated in place. A second write of the same GUID is
// ignored, so the first stored body is what /m/<guid> keeps serving.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - Single connection: appends from overlapping firehose ticks serialize
//
// Databases created by earlier releases (no primary key on accounts, no
// created_at on messages) are upgraded in place by the migrations.
package store
