// Package cache implements the tiered fragment cache: a fast GPU tier, a
// larger RAM tier and a compressed persistent disk tier, each bounded by
// byte size with LRU eviction. Reads probe fast-to-slow and promote hits
// one level up; writes cascade toward slower tiers when the preferred
// tier cannot hold the entry.
package cache
