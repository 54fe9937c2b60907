package auth

import (
	"context"
	"log"

	domain "github.com/example/chat-app/domain/user"
	"golang.org/x/sync/singleflight"
)

const directoryCacheKey = "directory:all"

// ProfileCache is the subset of the cache module used by the directory.
type ProfileCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error
}

// Directory serves the sidebar user list with an optional cache-aside layer.
type Directory struct {
	repo    *UserRepository
	cache   ProfileCache
	sfGroup singleflight.Group
}

// NewDirectory creates a Directory. A nil cache reads straight from the repository.
func NewDirectory(repo *UserRepository, cache ProfileCache) *Directory {
	return &Directory{
		repo:  repo,
		cache: cache,
	}
}

// ListExcept returns every public profile except the one with excludeID.
func (d *Directory) ListExcept(ctx context.Context, excludeID string) ([]domain.Profile, error) {
	all, err := d.all(ctx)
	if err != nil {
		return nil, err
	}

	profiles := make([]domain.Profile, 0, len(all))
	for _, p := range all {
		if p.ID != excludeID {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// Invalidate drops the cached directory after a user row changed.
func (d *Directory) Invalidate(ctx context.Context) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Delete(ctx, directoryCacheKey); err != nil {
		log.Printf("[auth] Warning: failed to invalidate directory cache: %v", err)
	}
}

func (d *Directory) all(ctx context.Context) ([]domain.Profile, error) {
	if d.cache != nil {
		var cached []domain.Profile
		found, err := d.cache.Get(ctx, directoryCacheKey, &cached)
		if err != nil {
			log.Printf("[auth] Directory cache error: %v", err)
		}
		if found {
			return cached, nil
		}
	}

	val, err, _ := d.sfGroup.Do(directoryCacheKey, func() (any, error) {
		users, err := d.repo.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		profiles := make([]domain.Profile, 0, len(users))
		for i := range users {
			profiles = append(profiles, users[i].Public())
		}
		return profiles, nil
	})
	if err != nil {
		return nil, err
	}
	profiles := val.([]domain.Profile)

	if d.cache != nil {
		if err := d.cache.Set(ctx, directoryCacheKey, profiles); err != nil {
			log.Printf("[auth] Warning: failed to cache directory: %v", err)
		}
	}
	return profiles, nil
}
