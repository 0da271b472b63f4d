package storage

// Package storage persists alarm definitions and per-owner timezones.
//
// The backend is an embedded SQLite database (pure-Go driver). In-memory
// scheduling state is derived from it and rebuilt wholesale at startup.
