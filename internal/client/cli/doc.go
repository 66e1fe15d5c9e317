// Package cli provides the interactive ProperBooky uploader.
//
// The CLI runs the upload pipeline in-process: files picked from disk are
// validated and queued locally, and "upload" drains the queue to object
// storage, registering each book in the catalog when the database is
// reachable. The owner is taken from an access token pasted with "token".
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
