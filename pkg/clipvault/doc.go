// Package clipvault is the public facade over the persistent clipboard
// history search/indexing/storage engine core: it wires store.Store,
// search.Engine and settings.Store together behind a single Open call, and
// defines the small boundary types (IngestedContent, ResultConsumer) a
// clipboard-polling collaborator and a UI collaborator use to talk to the
// core without either of them being part of this module.
package clipvault
