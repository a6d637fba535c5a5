// Package ui implements the interactive terminal views using bubbletea's Elm architecture.
//
// Two programs live here:
//  1. [LoginModel] : TIDAL device login. Shows the verification URL and user code, then polls
//     once per provider interval until the login is approved, denied or expires.
//  2. [Model] : local library browser with playlist and song lists, single-playlist sync
//     and full-library sync with live progress.
//
// Both receive their asynchronous results through the [Msg] union type.
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, s/S, q) with contextual help from charmbracelet/bubbles/help.
package ui
