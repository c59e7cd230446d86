// Package fault - error instances
//
// Provides a single instance of each pool error to allow easy comparison
// without having to resort to partial string matches
package fault
