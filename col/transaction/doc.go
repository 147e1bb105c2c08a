package transaction

// The transaction package implements tinycol's transaction layer. It turns inserts issued by operators into appends
// to the delta regions of column stores and decides, for every reader, which of the appended rows it may see.
//
// There is no write-ahead log and no lock table. Every row carries a validity entry {Begin, End}: Begin is the id of
// the transaction that wrote it and End marks a later invalidation (never set by inserts). Whether a row is visible
// to a reader is computed from that entry, the reader's snapshot id and the transaction manager, which maps
// transaction ids to commit ids. See mvcc.Visible for the rule.
//
// Two kinds of ids are in play. *Transaction ids* are handed out by txn.Manager.BuildContext and identify writers.
// *Commit ids* are handed out by txn.Manager.Commit, strictly increasing without gaps, and order transactions for
// readers. A context's snapshot id is the last commit id at the time it was built, so a transaction never sees rows
// of transactions that committed after it started, nor rows of transactions which are still running or aborted.
// Rows written outside of any transaction (bootstrap tables, bulk loads) carry ids the manager never handed out and
// are treated as committed at their own id.
//
// *Latches* serialise commits which touch the same unique keys. They live outside the stores; see the latches package.
// While a committing context holds its latches every store it wrote to validates it: a store reports a conflict if
// another transaction already committed a row with one of the same keys (first committer wins).
//
// Within this package, `txn` holds the manager and the context, `mvcc` the validity column and visibility rule,
// `latches` the commit latches and `commands` the operators (InsertScan, Commit, Abort) built on top of them. Each
// operator implements the `Command` interface and is run through commands.RunCommand.
