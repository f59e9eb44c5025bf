package db

import "time"

// Explanation is a stored AI explanation. Payload holds the JSON document.
type Explanation struct {
	KuralNumber int
	Model       string
	Payload     string
	CreatedAt   time.Time
}
