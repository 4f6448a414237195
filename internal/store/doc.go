// Package store persists pipeline state across two SQLite databases: a
// search index of discovered headlines keyed by topic, resolved URL, and
// publication date, and content records that carry one article apiece
// through scraping, summarization, synthesis, and publishing. Status
// transitions use compare-and-set so concurrent workers cannot move a
// record backwards.
package store
