// Package tasks reconciles a user's TIDAL library with the local store and reports progress.
//
// # Core Operations
//
// [SyncEngine] owns every write to local playlist links:
//
//  1. [SyncEngine.SyncFullLibrary] : mirror every remote playlist the user owns
//     - Upserts the local playlist keyed by (user, remote id)
//     - Replaces its links with the remote track order
//
//  2. [SyncEngine.SyncPlaylist], [SyncEngine.SyncFavorites], [SyncEngine.SyncMixes] : one playlist at a time
//     - Favorites and mixes land in aggregate playlists with synthetic remote ids
//     - Mixes are the union of every mix playlist, first occurrence wins
//
//  3. [SyncEngine.PushAddSong], [SyncEngine.PushRemoveSong] : local edit first, then TIDAL
//     - A remote failure leaves the local change committed and is returned to the caller
//
// # Ordering
//
// Links of a playlist always hold orders 0..n-1. Rewrites run inside a store transaction
// when the store implements [models.Transactor]. [PlaylistLocks] gives each playlist a single writer.
//
// # Progress Reporting
//
// Long operations accept an optional channel of [ProgressUpdate].
// Updates use select with default so a slow reader never blocks a pass.
package tasks
