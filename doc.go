package tinycol

/*
TinyCol is the transactional core of an in-memory column store, intended for teaching and experimentation. Tables are
split into read-optimised main partitions and an append-only delta; transactions insert into the delta and readers see
a consistent snapshot through per-row validity metadata. Merges move the delta into new main partitions in the
background without changing what any reader sees.

Building TinyCol produces one executable, tinycol-bench, which measures insert+commit throughput.

The `tinycol` module is organized into the following packages:

* `col/table`: schemas, columnar tables and builders, with plain and dictionary encoded columns.
* `col/storage`: the main/delta Store, merge strategies, mergers and the background merge scheduler.
* `col/transaction`: transaction ids, commit ids, visibility and the insert/commit/abort operators.
* `col/loader`: builds stores from rows the way bulk loads do.
* `col/config`, `col/util`: configuration and small shared helpers.
* `log`: leveled logging used across the module.
*/
