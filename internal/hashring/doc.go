// Package hashring implements a weighted consistent-hash ring with
// copy-on-write snapshots. Adding or removing one server only remaps the
// key ranges adjacent to its virtual nodes, roughly 1/N of the keyspace.
package hashring
