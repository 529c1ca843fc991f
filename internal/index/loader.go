package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	rerrors "github.com/Aman-CERP/rolodex/internal/errors"
	"github.com/Aman-CERP/rolodex/internal/store"
)

// DecodeContacts reads a JSON array of contacts. Unknown fields are
// rejected so a mistyped key does not silently drop data.
func DecodeContacts(r io.Reader) ([]store.Contact, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var contacts []store.Contact
	if err := dec.Decode(&contacts); err != nil {
		return nil, rerrors.InputError("contacts must be a JSON array of contact objects", err)
	}
	if dec.More() {
		return nil, rerrors.InputError("unexpected data after contacts array", nil)
	}

	for i := range contacts {
		c := &contacts[i]
		c.ID = strings.TrimSpace(c.ID)
		c.FullName = strings.TrimSpace(c.FullName)
		c.Company = strings.TrimSpace(c.Company)
		c.Position = strings.TrimSpace(c.Position)
		c.Email = strings.TrimSpace(c.Email)
	}
	return contacts, nil
}

// LoadContactsFile reads contacts from path, or from stdin when path is "-".
func LoadContactsFile(path string) ([]store.Contact, error) {
	if path == "-" {
		return DecodeContacts(os.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open contacts file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return DecodeContacts(f)
}
