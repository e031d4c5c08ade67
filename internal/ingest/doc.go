// Package ingest turns guarantee-instrument CSV files into canonical records
// and fans every record out to a queue, a key-value store and an event bus.
//
// The package holds all domain logic and knows nothing about Kafka, NATS,
// PostgreSQL or Redis. Adapters implement the sink interfaces
// [QueuePublisher], [RecordStore] and [EventPublisher], and a [Source] supplies
// the files.
//
// # Header Resolution
//
// Source files come from several systems that spell the same column
// differently. Each header cell is reduced with [NormalizeHeader] and the
// result is indexed once per file. Every canonical field carries an ordered
// alias list in an [AliasTable]; the first alias present in the file wins:
//
//	table := ingest.DefaultAliasTable()
//	fm := ingest.NewMapper(table).ForHeader(header)
//	rec, diag := fm.Map(row)
//
// Alias tables can be replaced at startup with [LoadAliasTable] from a
// versioned YAML file.
//
// # Typed Values
//
// Cells are parsed into pgtype values. Parsing never fails a row: an empty
// cell is absent, a cell that does not parse is absent and listed in
// [Diagnostics]. Decimals stay exact; they are never routed through float64.
//
// # File Processing
//
// [Pipeline.ProcessFile] streams one file:
//
//  1. The byte stream is wrapped with BOM stripping and UTF-8 repair
//  2. The first record is the header; a file without one is done
//  3. Every non-blank data row is mapped and dispatched to queue, store, event
//  4. Each dispatch has its own timeout and panic recovery
//
// A failing sink is logged and counted in [FileResult.SinkFailures]. Only a
// stream read error or cancellation fails the file. [Pipeline.RunBatch]
// processes files one after the other and keeps going after a failed file.
package ingest
