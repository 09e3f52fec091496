//go:build !darwin || !cgo

package permissions

func microphoneStatus() PermissionStatus { return PermissionAuthorized }

func accessibilityStatus() PermissionStatus { return PermissionAuthorized }

// OpenSettings is a no-op outside macOS
func OpenSettings(r Report) error { return nil }
