// Package region implements named, forkable, mergeable pointers into a
// graph.Store.
//
// A Region holds a name, immutable metadata and a head set. It never holds
// events: fork copies the head set, merge reduces the union of two head sets
// to its minimal cover, and diff and replay walk the store from the heads.
//
// Collection groups regions over one store and supplies the keep-set for
// garbage collection.
package region
