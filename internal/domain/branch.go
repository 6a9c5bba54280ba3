package domain

import "time"

// Branch is a retail outlet identified by its RO code.
type Branch struct {
	ROCode    string
	Name      string
	City      string
	CreatedAt time.Time
}
