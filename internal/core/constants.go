package core

import "fmt"

const (
	MaintainerLink    = "https://github.com/dorcha-inc/gamelink/blob/main/MAINTAINERS.md"
	BugReportTemplate = "\n\n[NOTE]This is most likely a bug in gamelink, please reach out to the maintainers at %s"
)

func BugReportMessage() string {
	return fmt.Sprintf(BugReportTemplate, MaintainerLink)
}

// ChunkName is the source name attached to every script chunk handed to the
// embedded engine. It shows up in engine-side error messages.
const ChunkName = "=gamelink"
