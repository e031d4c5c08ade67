// Package source supplies CSV objects to the ingestion pipeline.
//
// ObjectStore reads from a NATS JetStream object store bucket; Dir reads
// .csv files from a local directory. Both implement ingest.Source.
package source
