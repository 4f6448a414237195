// Package services holds the shared error taxonomy and retry helpers used
// by the external-facing adapters (news discovery, scraping, summarization,
// speech synthesis, publishing).
package services
