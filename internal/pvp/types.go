package pvp

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusDeclined Status = "DECLINED"
	StatusExpired  Status = "EXPIRED"
)

// Challenge is an invitation from one member to another, scoped to the
// channel it was issued in.
type Challenge struct {
	ID             string
	ChannelID      string
	ChallengerID   string
	ChallengerName string
	TargetID       string
	TargetName     string
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Status         Status
}

func (c *Challenge) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
