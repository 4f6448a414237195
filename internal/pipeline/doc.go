// Package pipeline orchestrates one day's news digest run: topic discovery,
// article scraping, topic summarization, speech synthesis, and publishing,
// with per-record failure isolation and a classified run outcome.
package pipeline
