package postgres

import "log/slog"

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for skipped rows. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}
