// Package replay drives a running xpboard instance over HTTP: it posts
// synthetic gateway events to the admin ingest route and then checks that
// the leaderboard and rank views agree with each other.
package replay

import (
	"errors"
	"time"
)

// Default run parameters.
const (
	DefaultUsers           = 200
	DefaultMessagesPerUser = 5
	DefaultTopN            = 50
	DefaultTimeout         = 10 * time.Second
	DefaultSettle          = 2 * time.Second
	DefaultDuplicateRatio  = 0.1
)

var (
	// ErrNoSecret is returned when no admin secret was configured.
	ErrNoSecret = errors.New("replay: admin secret is required")
	// ErrInconsistent is returned when the read views disagree.
	ErrInconsistent = errors.New("replay: inconsistent leaderboard")
)

// Config holds the parameters of one replay run.
type Config struct {
	BaseURL         string
	Secret          string        // admin JWT signing secret of the target
	GuildID         string        // guild stamped on generated events
	Users           int           // distinct synthetic authors
	MessagesPerUser int           // messages generated per author
	DuplicateRatio  float64       // share of events re-sent with the same id
	TopN            int           // leaderboard size to verify
	Workers         int           // concurrent submitters
	Timeout         time.Duration // per-request timeout
	Settle          time.Duration // wait between submit and verify
	Verbose         bool
}

// Stats summarizes a run.
type Stats struct {
	Generated  int
	Submitted  int
	Accepted   int
	Duplicate  int
	Filtered   int
	Failed     int
	Verified   int
	StartTime  time.Time
	Duration   time.Duration
	TopUserID  string
	TopUserXP  int64
	BoardCount int
}

func (c *Config) normalize() error {
	if c.Secret == "" {
		return ErrNoSecret
	}
	if c.Users <= 0 {
		c.Users = DefaultUsers
	}
	if c.MessagesPerUser <= 0 {
		c.MessagesPerUser = DefaultMessagesPerUser
	}
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.DuplicateRatio < 0 || c.DuplicateRatio > 1 {
		c.DuplicateRatio = DefaultDuplicateRatio
	}
	if c.GuildID == "" {
		c.GuildID = "replay"
	}
	return nil
}
