// Package store persists bearer tokens issued by the gateway's token CLI.
//
// Room membership, event subscriptions, and message history are
// deliberately never persisted; the gateway's realtime state is
// ephemeral and rebuilt from live connections after a restart. Only
// credentials live in the database, as SHA-256 hashes of the issued
// plaintext.
package store
