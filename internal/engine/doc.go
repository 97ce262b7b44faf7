// Package engine defines the entities, collaborator contracts, and error
// taxonomy shared by the crawl, index, and search pipelines.
package engine
