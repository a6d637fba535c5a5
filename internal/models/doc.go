// Package models defines domain entities and persistence interfaces for the tidx library mirror.
//
// The package contains two categories of types:
//
// 1. Remote values: immutable snapshots of TIDAL catalog data
//   - [RemoteTrack] : Track metadata as served by TIDAL
//   - [RemotePlaylist] : Playlist metadata owned by the authenticated TIDAL user
//   - [TrackBatch] : A page (or full listing) of tracks plus the count of items that failed to parse
//
// 2. Local entities: rows of the local library
//   - [Playlist] : A local playlist, linked to TIDAL when RemoteID is set
//   - [Song] : A song, unique by its TIDAL track id
//   - [PlaylistSongLink] : Playlist membership with a dense 0..n-1 order
//   - [Credential] : OAuth credential set for one local user
//
// [LocalStore] and [TokenStore] describe the persistence operations the sync core needs.
// [Transactor] is optional; stores that implement it let a full playlist rewrite commit atomically.
package models
