package version

const (
	AppName    = "schilliger-bot"
	AppVersion = "1.2.0"
)
