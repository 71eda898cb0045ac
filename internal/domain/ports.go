package domain

import "context"

// Persisted state keys live in a single local store. Theme values are part
// of the state contract; theming mechanics are the frontend's concern.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// StateRepository persists dashboard state (last scan, theme, user profile)
// across restarts. Loads return (nil, nil) / ("", nil) when a key is absent,
// and a corrupt stored payload degrades to absent rather than erroring.
type StateRepository interface {
	SaveScanResult(ctx context.Context, res *ScanResult) error
	LoadScanResult(ctx context.Context) (*ScanResult, error)
	ClearScanResult(ctx context.Context) error

	SaveTheme(ctx context.Context, theme string) error
	LoadTheme(ctx context.Context) (string, error)

	SaveUser(ctx context.Context, u *User) error
	LoadUser(ctx context.Context) (*User, error)
	ClearUser(ctx context.Context) error
}

// Toast severity levels.
const (
	NoticeInfo  = "info"
	NoticeWarn  = "warning"
	NoticeError = "error"
)

// Notifier delivers user-facing toast notifications. The request gateway is
// the only producer; it emits exactly one notification per failure.
type Notifier interface {
	Notify(level string, message string)
}

// NavigateFunc sends the user to path. Injected into the gateway at
// construction so there is no late-bound global navigation slot.
type NavigateFunc func(path string)
