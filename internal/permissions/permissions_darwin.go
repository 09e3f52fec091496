//go:build darwin && cgo

package permissions

/*
#cgo CFLAGS: -x objective-c -fmodules
#cgo LDFLAGS: -framework AVFoundation -framework ApplicationServices

#import <AVFoundation/AVFoundation.h>
#import <ApplicationServices/ApplicationServices.h>

int check_microphone_permission() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

int check_accessibility_permission() {
    Boolean isAccessibilityEnabled = AXIsProcessTrusted();
    return isAccessibilityEnabled ? 1 : 0;
}
*/
import "C"

import "os/exec"

func microphoneStatus() PermissionStatus {
	return PermissionStatus(C.check_microphone_permission())
}

func accessibilityStatus() PermissionStatus {
	if C.check_accessibility_permission() == 1 {
		return PermissionAuthorized
	}
	return PermissionDenied
}

// OpenSettings opens the privacy pane for the first missing permission
func OpenSettings(r Report) error {
	pane := "Privacy_Microphone"
	if r.Microphone == PermissionAuthorized {
		pane = "Privacy_Accessibility"
	}
	return exec.Command("open", "x-apple.systempreferences:com.apple.preference.security?"+pane).Run()
}
