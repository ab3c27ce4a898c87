package constants

// Pipeline limits and defaults
const (
	// Schema structural bounds
	MaxTablesPerSchema  = 15
	MaxColumnsPerTable  = 50
	MinTablesPerSchema  = 1
	MaxIdentifierLength = 63 // PostgreSQL NAMEDATALEN-1

	// Lock TTL bounds (minutes)
	DefaultLockTTLMinutes = 5
	MinLockTTLMinutes     = 1
	MaxLockTTLMinutes     = 10

	// Daily schema generation quota per user
	DefaultDailyGenerationQuota = 20

	// Expired-lock sweep interval (cron spec, hygiene only - lazy expiry
	// on acquire is what correctness relies on)
	LockSweepCronSpec = "* * * * *"
)
