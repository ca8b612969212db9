// Package cache provides the bounded LRU cache used for decoded assets.
//
//	c := cache.New[string, *image.NRGBA](16)
//	c.Set(url, img)
//	img, ok := c.Get(url)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
