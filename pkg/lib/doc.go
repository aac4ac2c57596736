// Package lib provides a Go SDK to convert documents to markdown programmatically.
//
// This package allows applications to queue PDF and DOCX conversions against
// the conversion backend, and to manage the local conversion history, without
// shelling out to the convq CLI binary.
//
// # Quick Start
//
//	client, err := lib.New(ctx, lib.Config{BackendURL: "http://localhost:6201"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	statuses, err := client.Convert(ctx, []lib.Document{
//	    {Path: "/docs/report.pdf"},
//	    {Name: "notes.docx", Data: docxBytes},
//	}, nil)
//
// Documents are converted one at a time in submission order. Unsupported
// documents are skipped and reported with [JobStatusSkipped], failed ones with
// [JobStatusError]. Failed conversions are retried at the head of the queue when
// [ConvertOpts].Retries is set.
//
// # Backends
//
//   - [BackendHTTP]: The real conversion backend (default).
//   - [BackendFake]: In-memory fake backend for unit testing. Every document
//     converts into "# <name>".
//
// # History
//
// Completed conversions are kept in a bounded local history (SQLite):
//
//	entries, err := client.History(ctx, &lib.HistoryOpts{Search: "invoice"})
//	err = client.DeleteHistory(ctx, entries[0].ID)
//	n, err := client.ClearHistory(ctx)
//
// # Errors
//
// All methods return errors that can be inspected with [errors.Is]:
//
//   - [ErrNotFound]: Resource does not exist.
//   - [ErrNotValid]: Invalid input.
package lib
