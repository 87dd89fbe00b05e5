package simulate

// HTTP status code constants.
const (
	StatusOK           = 200
	StatusUnauthorized = 401
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Display constants.
const (
	PercentageMultiplier = 100
	TopDisplayCount      = 10
)
