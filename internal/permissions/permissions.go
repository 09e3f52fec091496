// Package permissions reports the OS privacy permissions capture and the
// global hotkey depend on. Only macOS gates them; other platforms always
// report Authorized.
package permissions

// PermissionStatus represents the status of a system permission
type PermissionStatus int

const (
	// PermissionNotDetermined means the user hasn't been asked yet
	PermissionNotDetermined PermissionStatus = 0
	// PermissionRestricted means the permission is restricted by parental controls
	PermissionRestricted PermissionStatus = 1
	// PermissionDenied means the user has explicitly denied the permission
	PermissionDenied PermissionStatus = 2
	// PermissionAuthorized means the user has authorized the permission
	PermissionAuthorized PermissionStatus = 3
)

// String returns the string representation of the status
func (ps PermissionStatus) String() string {
	switch ps {
	case PermissionNotDetermined:
		return "NotDetermined"
	case PermissionRestricted:
		return "Restricted"
	case PermissionDenied:
		return "Denied"
	case PermissionAuthorized:
		return "Authorized"
	default:
		return "Unknown"
	}
}

// Report holds the status of every permission the pipeline needs
type Report struct {
	Microphone    PermissionStatus
	Accessibility PermissionStatus
}

// Check queries the current permissions
func Check() Report {
	return Report{
		Microphone:    microphoneStatus(),
		Accessibility: accessibilityStatus(),
	}
}

// Granted reports whether every permission is authorized
func (r Report) Granted() bool {
	return r.Microphone == PermissionAuthorized && r.Accessibility == PermissionAuthorized
}

// Missing lists the permissions that are not authorized, with what each one
// disables.
func (r Report) Missing() []string {
	var missing []string
	if r.Microphone != PermissionAuthorized {
		missing = append(missing, "マイク (Microphone): "+r.Microphone.String()+", 録音できません")
	}
	if r.Accessibility != PermissionAuthorized {
		missing = append(missing, "アクセシビリティ (Accessibility): "+r.Accessibility.String()+", ホットキーが届かない可能性があります")
	}
	return missing
}
