// Package changelog parses Liquibase-style XML changelog documents and
// reduces each changeset in them to a content-addressed record.
//
// The package has two halves:
//
//   - a canonical serializer that renders a parsed changeset element in
//     a normalized byte form (resolved namespaces, sorted attributes,
//     insignificant whitespace and comments removed) and hashes it, so
//     that two semantically identical changesets always share a digest
//     regardless of formatting;
//   - an extractor that walks a whole document, namespace-transparently
//     locates every changeSet element, and produces a Snapshot keyed by
//     (document path, changeset id, changeset author).
//
// Snapshots are transient values scoped to one document at one
// revision. Nothing in this package touches version control; callers
// supply raw document bytes.
package changelog
