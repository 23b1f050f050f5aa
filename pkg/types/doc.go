/*
Package types defines the data structures shared between the Swift
client, the filesystem-emulation layer, and their consumers.

The types here are deliberately plain: they carry no behavior beyond
small predicates, so that the client and store packages can exchange
metadata without depending on each other.
*/
package types
