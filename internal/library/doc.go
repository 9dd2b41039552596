// Package library persists the set of installed, playable items and the disk
// operations tied to them: cascading removal, archive deletion, and cover
// image caching.
package library
