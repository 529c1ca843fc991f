package embed

import (
	"strings"

	"github.com/Aman-CERP/rolodex/internal/store"
)

// ContactText renders the text embedded for a contact. Name is repeated
// three times and company and position twice so identity fields dominate
// free-form notes.
func ContactText(c store.Contact) string {
	var parts []string
	add := func(s string, times int) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for i := 0; i < times; i++ {
			parts = append(parts, s)
		}
	}

	add(c.FullName, 3)
	add(c.Company, 2)
	add(c.Position, 2)
	add(c.Notes, 1)

	return strings.Join(parts, " ")
}
