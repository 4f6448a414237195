// Package stage defines the adapter contracts the pipeline orchestrator
// drives: discovery, scraping, summarization, speech synthesis, and
// publishing.
package stage
