package email

import (
	"sort"
	"strings"

	"github.com/emersion/go-imap"
)

// nonExistentAttr marks LIST entries that only exist as hierarchy (RFC 5258)
const nonExistentAttr = "\\NonExistent"

// FlattenFolders turns a LIST "" "*" response into folder paths. The server
// already reports nested mailboxes as full paths joined by its delimiter;
// \Noselect placeholders are left out since they cannot be opened.
func FlattenFolders(infos []*imap.MailboxInfo) []string {
	seen := make(map[string]bool, len(infos))
	var paths []string

	for _, info := range infos {
		if info == nil || info.Name == "" || hasAttr(info, imap.NoSelectAttr) || hasAttr(info, nonExistentAttr) {
			continue
		}
		if seen[info.Name] {
			continue
		}
		seen[info.Name] = true
		paths = append(paths, info.Name)
	}

	// INBOX first, then alphabetical
	sort.SliceStable(paths, func(i, j int) bool {
		ii, jj := strings.EqualFold(paths[i], "INBOX"), strings.EqualFold(paths[j], "INBOX")
		if ii != jj {
			return ii
		}
		return paths[i] < paths[j]
	})
	return paths
}

func hasAttr(info *imap.MailboxInfo, attr string) bool {
	for _, a := range info.Attributes {
		if strings.EqualFold(a, attr) {
			return true
		}
	}
	return false
}
