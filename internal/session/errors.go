package session

import "errors"

// ErrNotJoined is the wire error text for any mutation or poll sent before
// a successful new/join/rejoin, per spec §4.3 and §7.
var ErrNotJoined = errors.New("haven't joined a puzzle")

// ErrAlreadyJoined covers new and join received while already joined.
// rejoin has its own literal wire text ("unexpected rejoin").
var ErrAlreadyJoined = errors.New("already joined a puzzle")

// errUnexpectedRejoin is the literal wire text for a rejoin received while
// already joined, per spec §4.3's FSM table.
var errUnexpectedRejoin = errors.New("unexpected rejoin")
