package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oitbase/roomledger/internal/store"
)

// Reconcile scans the subject mappings for entries whose target account
// record no longer exists and deletes them. It is idempotent and safe to
// run at any time; it repairs the window left open when account creation
// fails between the mapping write and the record write.
func (d *Directory) Reconcile(ctx context.Context) ([]string, error) {
	mappings, err := d.store.List(ctx, store.AuthMappingPrefix)
	if err != nil {
		return nil, fmt.Errorf("list mappings: %w", err)
	}

	var removed []string
	for encodedId, raw := range mappings {
		var accountId string
		if err := json.Unmarshal(raw, &accountId); err != nil {
			d.log.Printf("unparsable mapping %q, removing", encodedId)
			accountId = ""
		}

		if accountId != "" {
			_, err := d.store.Get(ctx, store.UserPath(accountId))
			if err == nil {
				continue
			}
			if !errors.Is(err, store.ErrPathNotFound) {
				return removed, fmt.Errorf("check account %q: %w", accountId, err)
			}
		}

		if err := d.store.Delete(ctx, store.AuthMappingPath(encodedId)); err != nil {
			return removed, fmt.Errorf("remove dangling mapping %q: %w", encodedId, err)
		}
		removed = append(removed, encodedId)
	}

	if len(removed) > 0 {
		d.log.Printf("reconciliation removed %d dangling mapping(s)", len(removed))
	}
	return removed, nil
}
