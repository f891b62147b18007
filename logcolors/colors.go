package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Green  = "\033[32m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
	Yellow = "\033[33m"

	BrightGreen   = "\033[92m"
	BrightBlue    = "\033[94m"
	BrightMagenta = "\033[95m"
	BrightCyan    = "\033[96m"
)

// Render cache log prefixes
const (
	LogCacheInit    = Blue + "[Cache:Init]" + Reset
	LogCache        = Blue + "[Cache]" + Reset
	LogCacheBackup  = Blue + "[Cache:Backup]" + Reset
	LogCacheClear   = Blue + "[Cache:Clear]" + Reset
	LogCacheBackups = Blue + "[Cache:Backups]" + Reset
	LogCacheRestore = Blue + "[Cache:Restore]" + Reset
	LogCacheMix     = Green + "[Cache:Mix]" + Reset
)

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAPIKey    = Purple + "[APIKey]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
)

// Editor log prefixes
const (
	LogSession      = BrightGreen + "[Session]" + Reset
	LogSessionSweep = BrightGreen + "[Session:Sweep]" + Reset
	LogIngest       = BrightCyan + "[Ingest]" + Reset
	LogMixdown      = BrightMagenta + "[Mixdown]" + Reset
	LogExport       = BrightBlue + "[Export]" + Reset
	LogFFmpeg       = Yellow + "[FFmpeg]" + Reset
)

// sessionColors rotate so log lines from one session are easy to follow
var sessionColors = []string{
	Green, Blue, Purple, Cyan, Yellow,
	BrightGreen, BrightBlue, BrightMagenta, BrightCyan,
}

// Session returns a colored short session id for log messages.
// The same id always gets the same color.
func Session(id string) string {
	hash := 0
	for _, c := range id {
		hash += int(c)
	}
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return sessionColors[hash%len(sessionColors)] + short + Reset
}
