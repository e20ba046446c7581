/*
Package log provides structured logging for the storage backend using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper functions for
common logging patterns. All logs include timestamps and support filtering by
severity level for production debugging.

# Architecture

The logging system provides structured JSON logging with minimal overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - Zerolog instance                         │          │
	│  │  - Initialized via log.Init()               │          │
	│  │  - Thread-safe for concurrent use           │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console (human)          │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Component Loggers                 │          │
	│  │  - WithComponent("raftlog.facade")          │          │
	│  │  - WithNodeID("node-abc123")                │          │
	│  │  - WithIndexUID("movies")                   │          │
	│  │  - WithSnapshotID("snapshot-42")             │          │
	│  │  - WithTaskID(17)                            │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON Format:                               │          │
	│  │  {                                           │          │
	│  │    "level": "info",                         │          │
	│  │    "component": "raftlog.facade",           │          │
	│  │    "time": "2024-10-13T10:30:00Z",         │          │
	│  │    "message": "completed log compaction"   │          │
	│  │  }                                           │          │
	│  │                                              │          │
	│  │  Console Format:                            │          │
	│  │  10:30AM INF completed log compaction component=raftlog.facade │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from every package in this module
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithNodeID: Add node ID context
  - WithIndexUID: Add index UID context
  - WithSnapshotID: Add snapshot ID context
  - WithTaskID: Add task ID context

# Usage

Initializing the Logger:

	import "github.com/cuemby/raftstore/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

Simple Logging:

	log.Info("storage backend initialized")
	log.Debug("checking membership configuration")
	log.Warn("skipping already-applied entry")
	log.Error("failed to open search database")
	log.Fatal("cannot start without a data directory") // Exits process

Component Loggers:

	facadeLog := log.WithComponent("raftlog.facade")
	facadeLog.Info().Msg("opened storage directory")

	indexLog := log.WithIndexUID("movies")
	indexLog.Info().Msg("created index")

	snapLog := log.WithSnapshotID("snapshot-7")
	snapLog.Info().Uint64("through", 1024).Msg("completed log compaction")

	taskLog := log.WithTaskID(42)
	taskLog.Debug().Msg("recorded task")

# Integration Points

This package is used by:

  - pkg/raftlog: logs compaction, snapshot installation, and per-command
    application events
  - cmd/raftstored: logs process lifecycle

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance
  - Initialized once at application start
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Log errors with .Err() to attach the error value

Don't:
  - Log sensitive data (secrets, passwords)
  - Use Debug level in production
  - Concatenate strings into messages (use .Str, .Uint64)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
