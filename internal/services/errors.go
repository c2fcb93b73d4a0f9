package services

import (
	"errors"
	"fmt"
	"strings"

	"portfoliograph/internal/files"
)

// Graph service errors
var (
	// ErrGraphUnavailable is returned when no snapshot has been published.
	ErrGraphUnavailable = errors.New("graph not available")
	// ErrClientNotFound is returned for an identifier absent from the snapshot.
	ErrClientNotFound = errors.New("client not found")
	// ErrInvalidThreshold is returned for a negative or non-finite min_corr.
	ErrInvalidThreshold = errors.New("invalid correlation threshold")

	// Registry errors
	ErrDatasetNotFound  = files.ErrDatasetNotFound
	ErrNoActiveDataset  = files.ErrNoActiveDataset
	ErrRegistryNotFound = files.ErrRegistryNotFound
)

// maxListedClients bounds the identifiers quoted in a ClientNotFoundError.
const maxListedClients = 5

// ClientNotFoundError carries a sample of the identifiers that do exist.
type ClientNotFoundError struct {
	ID        string
	Available []string
	More      bool
}

func newClientNotFound(id string, ids []string) *ClientNotFoundError {
	e := &ClientNotFoundError{ID: id, Available: ids}
	if len(ids) > maxListedClients {
		e.Available = append([]string{}, ids[:maxListedClients]...)
		e.More = true
	}
	return e
}

func (e *ClientNotFoundError) Error() string {
	list := strings.Join(e.Available, ", ")
	if e.More {
		list += ", ..."
	}
	return fmt.Sprintf("client %q not found; available: [%s]", e.ID, list)
}

// Is makes errors.Is(err, ErrClientNotFound) hold.
func (e *ClientNotFoundError) Is(target error) bool { return target == ErrClientNotFound }
