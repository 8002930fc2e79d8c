// Package vectorstore provides the persistent dense (embedding-based) index
// used by the hybrid retrieval engine.
//
// The index is backed by chromem-go, an embeddable vector database that
// persists collections to disk and reloads them on startup. Documents are
// embedded via an injected Embedder and stored together with their metadata,
// which supports conjunctive equality filtering at query time.
package vectorstore
