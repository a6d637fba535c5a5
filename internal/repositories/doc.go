// Package repositories implements SQLite persistence for the local library and OAuth credentials.
//
// Key Implementations:
//   - [PlaylistRepository] : Local playlists keyed by (user, remote id)
//   - [SongRepository] : Songs deduplicated by TIDAL track id
//   - [LinkRepository] : Playlist membership with dense ordering
//   - [CredentialRepository] : One OAuth credential per local user ([models.TokenStore])
//
// [Store] composes the library repositories into a [models.LocalStore] and implements
// [models.Transactor] so a playlist rewrite commits as a single transaction.
package repositories
