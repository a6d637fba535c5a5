package shared

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// browserCommand returns the program and arguments that open a URL on goos.
//
// A non-empty $BROWSER (split on whitespace) takes precedence over the platform opener.
func browserCommand(goos, override string) (string, []string, error) {
	if fields := strings.Fields(override); len(fields) > 0 {
		return fields[0], fields[1:], nil
	}

	switch goos {
	case "darwin":
		return "open", nil, nil
	case "linux", "freebsd", "openbsd":
		return "xdg-open", nil, nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}, nil
	default:
		return "", nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenBrowser starts the user's browser on url without waiting for it to exit.
func OpenBrowser(url string) error {
	name, args, err := browserCommand(runtime.GOOS, os.Getenv("BROWSER"))
	if err != nil {
		return err
	}

	if err := exec.Command(name, append(args, url)...).Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}
	return nil
}
