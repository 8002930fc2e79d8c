// Package hybrid implements the hybrid retrieval engine: a store manager
// that owns a persistent dense (embedding) index and an in-memory sparse
// (keyword) index, and merges their independently-scored result sets into a
// single ranked list under metadata filtering.
//
// Dense results are assigned synthetic rank-reciprocal scores (1/(rank+1))
// before weighting. This is a deliberate normalization: dense similarity and
// sparse relevance live on different numeric scales, and the configured
// weights are calibrated against rank-reciprocal dense scores, not raw
// distances.
package hybrid
