// Package roaming retrieves message history stored on the server.
//
// Friend history is paged by time: each request names a time window and
// the server answers with the newest chunk inside it, the time of that
// chunk's earliest message, and a salt for the next request. The window's
// upper end then moves down to the earliest time until a chunk comes back
// empty.
//
// Group history is paged by sequence number: the latest sequence is looked
// up first, pages of PageSize messages are fetched walking backwards until
// the requested start time is passed, and the accumulated messages are cut
// down to the requested window.
//
// Friend history and MessagesBefore yield newest first. Group MessagesIn
// yields oldest first, in the order it was accumulated.
//
// Both return an iter.Seq2 that fetches lazily as it is ranged over.
// Breaking out of the loop stops retrieval without another request, and a
// sequence cannot be resumed; range over a new one to retry.
package roaming
