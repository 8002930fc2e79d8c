// Package embeddings provides embedding generation for the retrieval engine.
//
// The default provider talks to any OpenAI-compatible embeddings endpoint,
// typically TEI (text-embeddings-inference) served locally. Embeddings are
// deterministic for a given model configuration, which the dense index
// relies on for round-tripping.
package embeddings
