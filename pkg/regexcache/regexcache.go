// Package regexcache keeps compiled regular expressions keyed by pattern so
// classification rules compile each pattern once per process.
//
// Usage:
//
//	re := regexcache.MustGet(`ORA-\d{5}`)
//	if re.MatchString(body) { ... }
package regexcache

import (
	"regexp"
	"sync"
)

var cache sync.Map // pattern -> *regexp.Regexp

// Get returns the compiled regexp for pattern, compiling it on first use.
func Get(pattern string) (*regexp.Regexp, error) {
	if cached, ok := cache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	actual, _ := cache.LoadOrStore(pattern, re)
	return actual.(*regexp.Regexp), nil
}

// MustGet is like Get but panics on an invalid pattern.
// Use it only for patterns that are compile-time constants.
func MustGet(pattern string) *regexp.Regexp {
	re, err := Get(pattern)
	if err != nil {
		panic(err)
	}
	return re
}

// FirstMatch returns the first pattern in patterns that matches s.
func FirstMatch(patterns []string, s string) (string, bool) {
	for _, p := range patterns {
		if MustGet(p).MatchString(s) {
			return p, true
		}
	}
	return "", false
}

// Clear drops every cached expression. Intended for tests.
func Clear() {
	cache.Range(func(key, _ any) bool {
		cache.Delete(key)
		return true
	})
}

// Size returns the number of cached expressions.
func Size() int {
	n := 0
	cache.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
