// Package activity builds the URLs and ActivityPub documents served and
// sent by the fuzzer: actors, WebFinger and NodeInfo records, Follow and
// Accept activities, and the GUIDs that make synthesized objects
// dereferenceable.
package activity
