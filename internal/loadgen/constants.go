package loadgen

// Comfort scale used for generated votes.
const (
	minComfort = 1
	maxComfort = 5
)

// Ambient ranges for generated readings.
const (
	minTemp    = 12.0
	tempRange  = 20.0
	minHumid   = 25.0
	humidRange = 50.0
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	directoryPermission  = 0o750
	filePermission       = 0o600
)
