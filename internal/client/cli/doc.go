// Package cli provides the interactive homekeeper command-line client.
//
// It wires configuration, the local document store, the sync engine and an
// interactive REPL that keeps working while the server is unreachable.
// Typical flow: restore or prompt for a session, start the connectivity
// watcher and the background sync scheduler, then execute user commands.
//
// Key features:
//   - Login / Logout (online with offline fallback)
//   - Manage homes and switch the active one
//   - Add, list, edit and remove categories, todos, items and locations
//   - Sync on demand and show the last sync status
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
// See App, StartOnlineStatusWatcher, and runREPL for details.
package cli
