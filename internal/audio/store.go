package audio

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"
)

var (
	ErrArtifactNotFound = errors.New("audio artifact not found")
	ErrArtifactExists   = errors.New("audio artifact reference already used")
	ErrInvalidRef       = errors.New("invalid audio artifact reference")
)

var refPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}\.(mp3|wav)$`)

// Artifact is a rendered utterance addressable by Ref.
type Artifact struct {
	Ref       string
	CallID    string
	MIMEType  string
	Data      []byte
	CreatedAt time.Time
}

// Store persists artifacts. A reference is written at most once.
type Store interface {
	Put(ctx context.Context, a Artifact) error
	Get(ctx context.Context, ref string) (Artifact, error)
	// Prune deletes artifacts created before the cutoff.
	Prune(ctx context.Context, before time.Time) (int, error)
}

// ValidateRef rejects references that could escape the store namespace.
func ValidateRef(ref string) error {
	if !refPattern.MatchString(ref) {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

// MIMETypeForRef derives the content type from the reference extension.
func MIMETypeForRef(ref string) string {
	switch {
	case len(ref) > 4 && ref[len(ref)-4:] == ".wav":
		return "audio/wav"
	default:
		return "audio/mpeg"
	}
}

// StartPruner periodically deletes artifacts older than ttl.
func StartPruner(ctx context.Context, store Store, interval, ttl time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := store.Prune(ctx, time.Now().UTC().Add(-ttl))
				if err != nil {
					logger.Warn("audio prune failed", zap.Error(err))
					continue
				}
				if n > 0 {
					logger.Debug("audio artifacts pruned", zap.Int("count", n))
				}
			}
		}
	}()
}
