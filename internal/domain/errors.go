package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTopTenNotReady is returned when the world view is requested before
	// the top ten list has been retrieved.
	ErrTopTenNotReady = errors.New("top ten earthquakes not loaded yet")

	// ErrAlreadyInitialized is returned when the map is initialized twice.
	ErrAlreadyInitialized = errors.New("map has already been initialized")
)

// TransportError reports that the service could not be reached.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("external service communication error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError reports a non-success answer from the service.
type ServiceError struct {
	StatusCode int
	StatusText string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error: status %d: %s", e.StatusCode, e.StatusText)
}

// NoGeometryError reports a selected place that cannot be located.
type NoGeometryError struct {
	Place string
}

func (e *NoGeometryError) Error() string {
	return fmt.Sprintf("place %q has no geometry", e.Place)
}

// EmptyResultError reports a query that matched no earthquakes.
type EmptyResultError struct {
	Bounds BoundingBox
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("no earthquakes found in %s", e.Bounds)
}

// ErrorKind names the taxonomy bucket of err for logs, metrics and notices.
func ErrorKind(err error) string {
	var (
		transport *TransportError
		service   *ServiceError
		noGeo     *NoGeometryError
		empty     *EmptyResultError
	)
	switch {
	case errors.As(err, &transport):
		return "transport"
	case errors.As(err, &service):
		return "service"
	case errors.As(err, &noGeo):
		return "no_geometry"
	case errors.As(err, &empty):
		return "empty_result"
	case errors.Is(err, ErrTopTenNotReady):
		return "top_ten_not_ready"
	case errors.Is(err, ErrAlreadyInitialized):
		return "already_initialized"
	default:
		return "internal"
	}
}

// NoticeText returns the message shown to the user for err.
func NoticeText(err error) string {
	var service *ServiceError
	switch ErrorKind(err) {
	case "transport":
		return "External service communication error."
	case "service":
		errors.As(err, &service)
		if service.StatusText != "" {
			return service.StatusText
		}
		return fmt.Sprintf("Service error (%d).", service.StatusCode)
	case "no_geometry":
		return "Please select one of the suggested locations."
	case "empty_result":
		return "No earthquakes found."
	case "top_ten_not_ready":
		return "The strongest earthquakes of the last year are still loading."
	case "already_initialized":
		return "Map has already been initialized"
	default:
		return err.Error()
	}
}
