package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: temporary locks, network
	// blips, busy filesystems.
	ErrTransient = errors.New("transient failure")
	// ErrPermanent marks failures retrying cannot fix: permission denied,
	// disk full. The recording is quarantined without further attempts.
	ErrPermanent = errors.New("permanent failure")
	// ErrAmbiguous marks a resolution that produced multiple equally likely
	// candidates. The best one is used; the ambiguity goes to the audit trail.
	ErrAmbiguous = errors.New("ambiguous resolution")
	// ErrUnresolvable marks a recording no candidate could identify above the
	// confidence floor.
	ErrUnresolvable = errors.New("unresolvable recording")
	// ErrVerification marks a checksum mismatch after a cross-filesystem copy.
	ErrVerification = errors.New("verification mismatch")
	// ErrConfiguration marks unusable configuration. Fatal at startup,
	// rejected (keeping the prior config) on reload.
	ErrConfiguration = errors.New("configuration error")
	// ErrTimeout marks an operation that exceeded its deadline.
	ErrTimeout = errors.New("timeout")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later status classification. The marker should
// be one of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the error should be retried on the backoff
// schedule rather than quarantining the recording immediately.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, ErrPermanent), errors.Is(err, ErrConfiguration):
		return false
	default:
		return true
	}
}

// Kind returns the audit-trail label for an error's classification.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrPermanent):
		return "permanent"
	case errors.Is(err, ErrAmbiguous):
		return "ambiguous"
	case errors.Is(err, ErrUnresolvable):
		return "unresolvable"
	case errors.Is(err, ErrVerification):
		return "verification"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "transient"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
