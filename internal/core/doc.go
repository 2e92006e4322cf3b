// Package core provides the business logic for managing farm records.
//
// This package contains all domain logic independent of any transport or
// storage layer. It can be used by web handlers, the CLI, or tests without
// modification; storage is supplied through the [Store] interface.
//
// # Architecture
//
//   - Access policy: [ScopeFor], [CanMutate] and [CanBulkUpload] decide what a
//     [Principal] may read and change. Every read starts from a [Scope].
//   - Query shape: [NewListQuery] turns raw filter, sort and pagination
//     parameters into a validated [ListQuery]. Sort keys are whitelisted.
//   - Service: the entry point for every operation (list, get, create,
//     update, delete, ingest, statistics, export, audit).
//   - Validation: [RecordValidator] is shared by single-record writes and
//     every CSV row.
//   - Ingestion: [Service.Ingest] validates a whole batch before writing and
//     commits it in one transaction.
//
// # Ingestion
//
//  1. Permission is checked and an ingestion slot is taken from the [IngestLimiter]
//  2. The reader is wrapped with BOM skipping and UTF-8 sanitization
//  3. The header is matched case-insensitively; missing columns are a [SchemaError]
//  4. Every row is validated; the first violations are reported with a total
//  5. Rows and a batch audit entry are inserted in one transaction
//
// # Error Handling
//
// Errors are classified with [KindOf] and mapped to user messages with
// [MapError]. Each category has a code for support reference:
//
//   - REC001, AUTH001-AUTH002, REQ001: lookup, access and request errors
//   - VAL001-VAL004: validation and schema errors
//   - DB001-DB008: database errors
//   - FILE001-FILE005, UPL002-UPL005: upload errors
//
// # Audit Logging
//
// Every mutation is recorded with a severity:
//
//   - Low: record creation
//   - Medium: record updates (with a JSON Patch of the change)
//   - High: record deletion, batch ingestion
//   - Critical: bulk purge of a user's records
//
// Entries older than the retention window are purged by [Service.StartAuditRetention].
package core
