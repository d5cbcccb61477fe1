// Package session implements the per-connection protocol FSM of spec §4.3:
// parsing text and binary frames, dispatching them against the store,
// presence tracker, and picture-of-the-day collaborators, and replying
// synchronously on the same connection.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pommicket/jigsaw/internal/config"
	"github.com/pommicket/jigsaw/internal/potd"
	"github.com/pommicket/jigsaw/internal/presence"
	"github.com/pommicket/jigsaw/internal/protocol"
	"github.com/pommicket/jigsaw/internal/puzzleid"
	"github.com/pommicket/jigsaw/internal/store"
)

// State is a session's join state, kept as a small explicit enum rather
// than a pair of booleans — there are exactly two states and one id.
type State int

const (
	StateUnjoined State = iota
	StateJoined
)

// Session owns one client connection for its lifetime. It has a single
// read loop and no outbound queue: every reply is written synchronously
// in response to the request that caused it, per spec §5, so unlike the
// teacher's pkg/peer.Peer (readLoop + writeLoop + outq, for an
// asynchronous wire protocol) there is exactly one loop here.
type Session struct {
	id  string
	log *slog.Logger

	conn     Conn
	store    store.Store
	presence *presence.Tracker
	featured *potd.FeaturedList
	potd     *potd.Cache
	cfg      *config.Config

	state    State
	puzzleID string

	polledOnce   bool
	lastPollHash uint64
}

// New returns a Session ready to Run over conn. The session reads limits
// from cfg for its whole lifetime; config.Update installs a new Config
// rather than mutating the one passed here, so it does not change limits
// already in effect for this session.
func New(
	conn Conn,
	st store.Store,
	pres *presence.Tracker,
	featured *potd.FeaturedList,
	potdCache *potd.Cache,
	cfg *config.Config,
	log *slog.Logger,
) *Session {
	if log == nil {
		log = slog.Default()
	}
	id := uuid.NewString()

	return &Session{
		id:       id,
		log:      log.With("session", id),
		conn:     conn,
		store:    st,
		presence: pres,
		featured: featured,
		potd:     potdCache,
		cfg:      cfg,
		state:    StateUnjoined,
	}
}

// Run reads and dispatches frames until the connection closes or a
// terminal protocol error occurs. It always returns a non-nil error
// (including a plain EOF/close from the remote) since there is no graceful
// application-level "done" distinct from connection close.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session.start")
	defer s.cleanup()

	s.conn.SetReadLimit(s.cfg.MaxFrameBytes)

	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log.Info("session.closed", "err", err.Error())
			_ = s.conn.Close()
			return err
		}

		var dispatchErr error
		switch mt {
		case TextMessage:
			dispatchErr = s.handleText(ctx, string(data))
		case BinaryMessage:
			dispatchErr = s.handleBinary(ctx, data)
		default:
			continue
		}

		if dispatchErr != nil {
			s.log.Warn("session.terminal", "err", dispatchErr.Error())
			_ = s.writeText(s.terminalReply(dispatchErr))
			_ = s.conn.Close()
			return dispatchErr
		}
	}
}

func (s *Session) cleanup() {
	if s.state == StateJoined {
		s.presence.Decrement(s.puzzleID)
	}
	s.log.Info("session.end")
}

func (s *Session) handleText(ctx context.Context, line string) error {
	frame, err := protocol.ParseTextFrame(line)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownCommand) {
			s.log.Debug("session.text.ignored", "line", line)
			return nil
		}
		return err
	}

	switch frame.Cmd {
	case protocol.CmdNew:
		return s.handleNew(ctx, frame)
	case protocol.CmdJoin:
		return s.handleJoin(ctx, frame)
	case protocol.CmdRejoin:
		return s.handleRejoin(ctx, frame)
	case protocol.CmdPoll:
		return s.handlePoll(ctx)
	case protocol.CmdRandomFeaturedWikimedia:
		return s.handleRandomFeatured()
	case protocol.CmdWikimediaPotd:
		return s.handleWikimediaPotd()
	default:
		return fmt.Errorf("session: unhandled command %v", frame.Cmd)
	}
}

func (s *Session) handleNew(ctx context.Context, frame *protocol.TextFrame) error {
	if s.state != StateUnjoined {
		return ErrAlreadyJoined
	}

	if frame.Width < s.cfg.MinBoardDim || frame.Width > s.cfg.MaxBoardDim ||
		frame.Height < s.cfg.MinBoardDim || frame.Height > s.cfg.MaxBoardDim {
		return fmt.Errorf("board dimensions out of range [%d, %d]", s.cfg.MinBoardDim, s.cfg.MaxBoardDim)
	}
	if frame.Width*frame.Height > s.cfg.MaxPieces {
		return protocol.ErrTooManyPieces
	}
	if len(frame.URL) > s.cfg.MaxURLBytes {
		return protocol.ErrURLTooLong
	}

	id, err := s.allocate(ctx)
	if err != nil {
		return err
	}

	if err := s.store.Populate(ctx, id, frame.Width, frame.Height, frame.URL, frame.Seed); err != nil {
		return fmt.Errorf("session: populate %s: %w", id, err)
	}
	if err := s.presence.TryIncrement(id); err != nil {
		return err
	}

	s.state = StateJoined
	s.puzzleID = id
	s.log.Info("session.new", "puzzle_id", id, "width", frame.Width, "height", frame.Height)

	return s.writeText(protocol.EncodeIDReply(id))
}

// allocate generates a fresh id and reserves it in the store, retrying on
// collision up to cfg.IDAllocateAttempts times — the same bounded-retry
// shape as the teacher's id-space collision handling in peer/tracker id
// generation, just over puzzleid's base-57 alphabet instead of a 20-byte
// peer id.
func (s *Session) allocate(ctx context.Context) (string, error) {
	for attempt := 0; attempt < s.cfg.IDAllocateAttempts; attempt++ {
		id, err := puzzleid.Generate(s.cfg.IDLength)
		if err != nil {
			return "", fmt.Errorf("session: generate puzzle id: %w", err)
		}

		err = s.store.Allocate(ctx, id)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, store.ErrAlreadyExists) {
			continue
		}
		return "", fmt.Errorf("session: allocate puzzle id: %w", err)
	}

	return "", fmt.Errorf("session: exhausted %d id allocation attempts", s.cfg.IDAllocateAttempts)
}

func (s *Session) handleJoin(ctx context.Context, frame *protocol.TextFrame) error {
	if s.state != StateUnjoined {
		return ErrAlreadyJoined
	}
	if !puzzleid.Valid(frame.PuzzleID, s.cfg.IDLength) {
		return protocol.ErrBadPuzzleID
	}

	puzzle, err := s.store.GetPuzzleInfo(ctx, frame.PuzzleID)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.ErrBadPuzzleID
	}
	if err != nil {
		return fmt.Errorf("session: get puzzle %s: %w", frame.PuzzleID, err)
	}

	if err := s.presence.TryIncrement(frame.PuzzleID); err != nil {
		return err
	}

	s.state = StateJoined
	s.puzzleID = frame.PuzzleID
	s.log.Info("session.join", "puzzle_id", frame.PuzzleID)

	snapshot := protocol.EncodePuzzleSnapshot(
		puzzle.Width, puzzle.Height, puzzle.URL, puzzle.Seed,
		puzzle.Positions, puzzle.Connectivity,
	)
	return s.writeBinary(snapshot)
}

func (s *Session) handleRejoin(ctx context.Context, frame *protocol.TextFrame) error {
	if s.state != StateUnjoined {
		return errUnexpectedRejoin
	}
	if !puzzleid.Valid(frame.PuzzleID, s.cfg.IDLength) {
		return protocol.ErrBadPuzzleID
	}

	_, err := s.store.GetPuzzleInfo(ctx, frame.PuzzleID)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.ErrBadPuzzleID
	}
	if err != nil {
		return fmt.Errorf("session: get puzzle %s: %w", frame.PuzzleID, err)
	}

	if err := s.presence.TryIncrement(frame.PuzzleID); err != nil {
		return err
	}

	s.state = StateJoined
	s.puzzleID = frame.PuzzleID
	s.log.Info("session.rejoin", "puzzle_id", frame.PuzzleID)

	return s.writeText(protocol.EncodeRejoinedReply())
}

func (s *Session) handlePoll(ctx context.Context) error {
	if s.state != StateJoined {
		return ErrNotJoined
	}

	positions, connectivity, err := s.store.GetPieceInfo(ctx, s.puzzleID)
	if errors.Is(err, store.ErrNotFound) {
		return protocol.ErrBadPuzzleID
	}
	if err != nil {
		return fmt.Errorf("session: get piece info %s: %w", s.puzzleID, err)
	}

	hash := protocol.SnapshotHash(positions, connectivity)
	if s.polledOnce && hash == s.lastPollHash {
		return nil // suppressed: nothing changed since the last poll
	}
	s.polledOnce = true
	s.lastPollHash = hash

	return s.writeBinary(protocol.EncodePollSnapshot(positions, connectivity))
}

func (s *Session) handleBinary(ctx context.Context, data []byte) error {
	if s.state != StateJoined {
		return ErrNotJoined
	}

	batch, err := protocol.ParseBatch(data)
	if err != nil {
		return err
	}

	maxPiece := uint32(s.cfg.MaxPieces)
	for _, op := range batch.Ops {
		switch op.Action {
		case protocol.ActionMove:
			if op.PieceIndex >= maxPiece {
				return protocol.ErrBadPieceID
			}
			if err := s.store.MovePiece(ctx, s.puzzleID, op.PieceIndex, op.X, op.Y); err != nil {
				return s.storeErrToWire(err)
			}

		case protocol.ActionConnect:
			if op.Piece1 >= maxPiece || op.Piece2 >= maxPiece {
				return protocol.ErrBadPieceID
			}
			if err := s.store.ConnectPieces(ctx, s.puzzleID, op.Piece1, op.Piece2); err != nil {
				return s.storeErrToWire(err)
			}
		}
	}

	return s.writeText(protocol.EncodeAckReply(batch.MessageID))
}

func (s *Session) storeErrToWire(err error) error {
	switch {
	case errors.Is(err, store.ErrPieceOutOfRange):
		return protocol.ErrBadPieceID
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNotPopulated):
		return protocol.ErrBadPuzzleID
	default:
		return fmt.Errorf("session: mutate %s: %w", s.puzzleID, err)
	}
}

func (s *Session) handleRandomFeatured() error {
	url, _ := s.featured.Random()
	return s.writeText(protocol.EncodeUseImageReply(url))
}

func (s *Session) handleWikimediaPotd() error {
	return s.writeText(protocol.EncodeUseImageReply(s.potd.Get()))
}

func (s *Session) writeText(line string) error {
	return s.conn.WriteMessage(TextMessage, []byte(line))
}

func (s *Session) writeBinary(b []byte) error {
	return s.conn.WriteMessage(BinaryMessage, b)
}

// terminalReply renders the wire error frame for a dispatch error. Errors
// matching one of the spec's named kinds get their exact literal text;
// anything else (malformed syntax, internal wrapped errors) is reported
// under a generic "bad syntax" kind with the underlying message attached,
// since the client only ever needs to know the session is about to close.
func (s *Session) terminalReply(err error) string {
	switch {
	case errors.Is(err, protocol.ErrBadPuzzleID):
		return protocol.EncodeErrorReply(protocol.ErrBadPuzzleID.Error(), "")
	case errors.Is(err, protocol.ErrBadPieceID):
		return protocol.EncodeErrorReply(protocol.ErrBadPieceID.Error(), "")
	case errors.Is(err, protocol.ErrURLTooLong):
		return protocol.EncodeErrorReply(protocol.ErrURLTooLong.Error(), "")
	case errors.Is(err, protocol.ErrTooManyPieces):
		return protocol.EncodeErrorReply(protocol.ErrTooManyPieces.Error(), "")
	case errors.Is(err, presence.ErrTooManyPlayers):
		return protocol.EncodeErrorReply(presence.ErrTooManyPlayers.Error(), "")
	case errors.Is(err, ErrNotJoined):
		return protocol.EncodeErrorReply(ErrNotJoined.Error(), "")
	case errors.Is(err, errUnexpectedRejoin):
		return protocol.EncodeErrorReply(errUnexpectedRejoin.Error(), "")
	case errors.Is(err, ErrAlreadyJoined):
		return protocol.EncodeErrorReply(ErrAlreadyJoined.Error(), "")
	default:
		return protocol.EncodeErrorReply("bad syntax", err.Error())
	}
}
