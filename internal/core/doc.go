// Package core runs catalog imports and exposes catalog maintenance.
//
// It sits between the transports (HTTP handlers, the catalogctl CLI) and the
// domain packages, and knows nothing about either side's wire format.
//
// # Pipeline
//
// One import turns a set of files into a reconciled sector:
//
//  1. Every file is parsed by [ingest.Parse]. A file that fails is reported
//     and the others continue.
//  2. Each parsed table is mapped into a tree by [mapper.Map], one category
//     per file, and the trees are merged.
//  3. With ClearExisting set, the whole catalog is deleted. This happens
//     only after parsing succeeded, so an unreadable upload never wipes data.
//  4. With DetectDuplicates set, sibling names are scanned for near matches.
//  5. The merged tree is reconciled against the store.
//
// Progress is reported through [progress.Reporter] with exactly one terminal
// event. [Service.Import] runs synchronously; [Service.StartImport] runs in
// the background and is followed with [Service.SubscribeProgress].
//
// # Concurrency
//
// At most Import.MaxConcurrent runs hold a slot of the [ImportLimiter] at a
// time. Callers that cannot get one within Import.MaxWaitTime receive
// [ErrTooManyImports]. [Service.ImportMany] imports independent sectors in
// parallel.
//
// # Error Handling
//
// Technical errors map to user messages with [MapError]. Codes are grouped
// by kind:
//
//   - PARSE001-PARSE007: the file could not be read
//   - VAL001-VAL005: a row or node was rejected
//   - REF001: a parent disappeared mid-run
//   - STORE001-STORE005: store failures, retryable
//   - IMP001-IMP008: run management (cancelled, busy, limits)
package core
