// Package textutil provides small text helpers: sanitizing names for
// safe filesystem use and deriving display titles from identifiers.
package textutil
