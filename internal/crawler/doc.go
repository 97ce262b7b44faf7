// Package crawler discovers the pages of one site by recursive, concurrent
// link traversal from the site root.
//
// Each visited page forks one goroutine per newly discovered link and joins
// them before returning. Fetches run on a bounded taskpool.Pool so parents
// waiting on children never hold a worker. Discovered pages live in an
// index-addressed arena whose path set is guarded by a single mutex, which
// makes the check-then-insert of a new path atomic across branches.
package crawler
