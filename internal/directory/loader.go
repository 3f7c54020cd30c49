package directory

import (
	"context"

	"github.com/kingrea/staff-directory/internal/api"
	"github.com/kingrea/staff-directory/internal/technician"
)

// ListLoader adapts the API list call into a cache fetcher whose failures
// are LoadFailed.
func ListLoader(client api.Client) func(context.Context) ([]technician.Record, error) {
	return func(ctx context.Context) ([]technician.Record, error) {
		records, err := client.List(ctx)
		if err != nil {
			return nil, technician.LoadFailed(err)
		}
		return records, nil
	}
}
