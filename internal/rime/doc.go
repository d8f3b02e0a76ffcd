// Package rime defines the boundary to the native conversion engine.
//
// The conversion engine (dictionary lookup, pinyin-to-hanzi mapping,
// candidate ranking, Traditional/Simplified conversion) is an external
// collaborator reached only through the Engine interface. This package
// carries no conversion logic of its own: it is the contract the bridge
// sequences operations against, plus the raw session-state record the
// engine reports back.
//
// # Call discipline
//
// The engine is not reentrant. Callers must never issue two operations
// concurrently against the same engine; the bridge enforces this with a
// single lock around every mutate-then-query pair.
//
// Each QueryState call consumes the commit buffer: text committed by the
// preceding mutating operation is reported exactly once, and a second
// consecutive query reports no commit. This mirrors the underlying API,
// where the commit record must be freed before each read to avoid
// observing a stale commit.
package rime
