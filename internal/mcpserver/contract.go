package mcpserver

// SyncModel explains to LLM clients how offnote notes move between the local
// store and the remote store.
const SyncModel = `# offnote sync model

Every note is written to the local store first and is always readable, even
offline. Each note carries a syncStatus:

- unsynced: saved locally, not yet sent to the remote (offline, or waiting
  behind an older queued change to the same note)
- syncing: a remote call is in flight
- synced: the remote acknowledged the latest local version
- error: the remote call failed; the change is queued and will be retried

The boolean "synced" field is derived from syncStatus and is never set on
its own.

## Queue

Changes that could not reach the remote are kept in a FIFO queue and replayed
in order as soon as connectivity returns. A failing entry stops the replay;
it and everything behind it stay queued until the next attempt.

Deleting a note removes it locally at once. The remote delete follows the
same queue rules.

## Tools

- list_notes: all notes ordered by updatedAt, optional substring query
- create_note / update_note / delete_note: mutate a note by id
- sync_status: connectivity flag, queue depth, and pending operations
- sync_now: replay the queue immediately (fails while offline)
`
