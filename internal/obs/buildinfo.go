package obs

// Set at link time via -ldflags "-X ...".
var (
	Version = "dev"
	Commit  = "unknown"
)

// BuildInfo renders the version line printed at startup.
func BuildInfo() string {
	return Version + " (" + Commit + ")"
}
