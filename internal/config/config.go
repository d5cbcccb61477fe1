// Package config holds process-wide, atomically-swappable server
// configuration.
package config

import (
	"time"
)

// Config defines behavior and resource limits for the jigsaw server.
type Config struct {
	// ========== Networking ==========

	// BindAddr is the address the HTTP/websocket listener binds to.
	BindAddr string

	// MaxFrameBytes caps the size of a single inbound websocket frame.
	MaxFrameBytes int64

	// ========== Puzzle limits ==========

	// MinBoardDim and MaxBoardDim bound width and height in pieces.
	MinBoardDim int
	MaxBoardDim int

	// MaxPieces bounds width*height.
	MaxPieces int

	// MaxURLBytes bounds the puzzle image URL length.
	MaxURLBytes int

	// MaxPlayersPerPuzzle caps concurrent joined sessions per puzzle.
	MaxPlayersPerPuzzle int

	// IDLength is the length of a generated puzzle identifier.
	IDLength int

	// IDAllocateAttempts bounds retries on id collision.
	IDAllocateAttempts int

	// ========== Puzzle lifetime ==========

	// PuzzleTTL is the age after which a puzzle becomes eligible for sweep.
	PuzzleTTL time.Duration

	// SweepInterval is the period between sweep passes.
	SweepInterval time.Duration

	// ========== Picture of the day ==========

	// PotDGracePeriod is how long after UTC midnight the refresh waits
	// before invoking the fetcher, so the upstream has published.
	PotDGracePeriod time.Duration

	// PotDFetchTimeout bounds a single fetch attempt.
	PotDFetchTimeout time.Duration

	// FeaturedListPath is the newline-delimited URL file loaded at startup.
	FeaturedListPath string

	// PotDScriptPath is the child process invoked for the picture of the day.
	PotDScriptPath string
}

// Default returns sensible defaults for running the server standalone.
func Default() Config {
	return Config{
		BindAddr:            "127.0.0.1:54472",
		MaxFrameBytes:       128 * 1024,
		MinBoardDim:         3,
		MaxBoardDim:         50,
		MaxPieces:           1000,
		MaxURLBytes:         2048,
		MaxPlayersPerPuzzle: 20,
		IDLength:            7,
		IDAllocateAttempts:  16,
		PuzzleTTL:           7 * 24 * time.Hour,
		SweepInterval:       time.Hour,
		PotDGracePeriod:     60 * time.Second,
		PotDFetchTimeout:    30 * time.Second,
		FeaturedListPath:    "featuredpictures.txt",
		PotDScriptPath:      "potd.py",
	}
}
