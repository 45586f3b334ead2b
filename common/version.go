package common

import (
	"time"
)

const releaseYear = 2024
const releaseMonth = 1
const releaseDay = 15
const releaseHour = 0
const releaseMin = 0

// Version is the current release of the library.
const Version = "0.1.0"

// ReleasedAt is the timestamp of the Version release.
var ReleasedAt = time.Date(releaseYear, releaseMonth, releaseDay, releaseHour, releaseMin, 0, 0, time.UTC)
