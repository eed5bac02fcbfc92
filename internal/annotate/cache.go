package annotate

// ResultCache persists merged results between runs. Entries are keyed by the
// full query; a cached empty result records a miss. A cache must be cleared
// whenever the configured sources change.
type ResultCache interface {
	Get(q Query) (res Result, ok bool, err error)
	Put(entries []CacheEntry) error
}

// CacheEntry is one result to store.
type CacheEntry struct {
	Query  Query
	Result Result
}

// cacheBatchSize bounds how many new results AnnotateAll buffers before
// writing them to the cache.
const cacheBatchSize = 10000
